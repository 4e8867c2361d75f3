package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is anything that can sign access-token claims.
type Signer interface {
	Sign(Claims) (string, error)
}

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// HS256Signer signs tokens with a process-wide symmetric key. The key is
// copied at construction and never mutated afterwards.
type HS256Signer struct {
	key []byte
}

func NewSignerHS256(key []byte) (*HS256Signer, error) {
	if len(key) < 32 {
		return nil, errors.New("jwtx: HS256 key must be at least 32 bytes")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &HS256Signer{key: k}, nil
}

func (s *HS256Signer) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// HS256Verifier validates HS256 tokens against a symmetric key plus the
// expected issuer and audience. Expiry is checked with zero clock-skew
// tolerance.
type HS256Verifier struct {
	key      []byte
	issuer   string
	audience string
}

func NewVerifierHS256(key []byte, issuer, audience string) (*HS256Verifier, error) {
	if len(key) < 32 {
		return nil, errors.New("jwtx: HS256 key must be at least 32 bytes")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &HS256Verifier{key: k, issuer: issuer, audience: audience}, nil
}

func (v *HS256Verifier) Verify(tokenString string) (Claims, error) {
	var claims Claims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgMismatch
		}
		return v.key, nil
	},
		// Registered-claim time checks are re-done below with zero leeway;
		// disable the library's so a single code path owns the decision.
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlgMismatch):
			return Claims{}, ErrAlgMismatch
		case errors.Is(err, jwt.ErrSignatureInvalid), errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}
	if !token.Valid {
		return Claims{}, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(time.Now().UTC()); err != nil {
		return Claims{}, err
	}

	return claims, nil
}
