// Package idx generates ULID identifiers for all persisted entities. ULIDs
// sort lexicographically by creation time, which keeps index pages warm and
// makes IDs useful as pagination cursors.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID in its canonical 26-character string form.
type ID string

const Zero ID = ""

var ErrInvalid = errors.New("idx: invalid ulid")

// A single monotonic entropy source shared by the process. The mutex makes
// concurrent New calls safe; monotonicity guarantees strict ordering of IDs
// minted within the same millisecond.
var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New mints an ID at the current UTC time.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt mints an ID at the given time. Tests use it to fix ordering.
func NewAt(t time.Time) ID {
	mu.Lock()
	defer mu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t), entropy).String())
}

// Parse validates s and returns it as an ID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

func (id ID) IsZero() bool   { return id == Zero }
func (id ID) String() string { return string(id) }

// Time returns the timestamp embedded in the ID, or the zero time when the
// ID does not parse.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
