package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"unicode password", "пароль密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			require.NoError(t, err)
			require.NotEmpty(t, hash)

			// Verify PHC format
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"),
				"hash should be in PHC format")

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Contains(t, parts[3], "m=", "should contain memory parameter")
			require.Contains(t, parts[3], "t=", "should contain iterations parameter")
			require.Contains(t, parts[3], "p=", "should contain parallelism parameter")
			require.NotEmpty(t, parts[4], "salt should not be empty")
			require.NotEmpty(t, parts[5], "hash should not be empty")
		})
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	password := "samepassword"

	hash1, err := HashPassword(password)
	require.NoError(t, err)

	hash2, err := HashPassword(password)
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter22hunter22")
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		require.NoError(t, VerifyPassword("hunter22hunter22", hash))
	})

	t.Run("wrong password", func(t *testing.T) {
		require.Error(t, VerifyPassword("hunter23hunter23", hash))
	})

	t.Run("malformed hash", func(t *testing.T) {
		require.Error(t, VerifyPassword("whatever", "not-a-phc-hash"))
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		require.Error(t, VerifyPassword("whatever", "$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"))
	})
}
