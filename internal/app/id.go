package app

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a lexicographically sortable identifier for stored entities.
func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// newToken returns an opaque token for channel access and email verification.
func newToken() string {
	return uuid.NewString()
}

// codeSuffix returns a short random suffix used to disambiguate a
// colliding channel code.
func codeSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
