// Package authority implements the administrator capability for the engine.
// Admin-gated operations take an explicit Authority argument that is checked
// against the Keeper's current capability; there is no ambient admin state.
package authority

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
)

// Authority is an opaque capability value. Holding a value that matches the
// Keeper's current capability is what makes a caller the administrator; the
// engine never inspects who presented it.
type Authority struct {
	token string
}

// FromToken wraps a raw capability token. The caller's authentication layer
// is responsible for deciding who may hold the token.
func FromToken(token string) Authority {
	return Authority{token: token}
}

// Generate creates a fresh random capability.
func Generate() Authority {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate authority token: " + err.Error())
	}
	return Authority{token: hex.EncodeToString(b)}
}

// Keeper holds the engine's current administrator capability and verifies
// presented Authority values. The capability is rotatable via Transfer.
type Keeper struct {
	mu      sync.RWMutex
	current Authority
}

// NewKeeper creates a Keeper holding the given capability.
func NewKeeper(admin Authority) *Keeper {
	return &Keeper{current: admin}
}

// Verify returns ErrForbidden unless a matches the current capability.
func (k *Keeper) Verify(a Authority) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if subtle.ConstantTimeCompare([]byte(a.token), []byte(k.current.token)) != 1 {
		return apperrors.ErrForbidden
	}
	return nil
}

// Transfer replaces the capability with next. The current capability must be
// presented; afterwards only next is accepted.
func (k *Keeper) Transfer(current, next Authority) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if subtle.ConstantTimeCompare([]byte(current.token), []byte(k.current.token)) != 1 {
		return apperrors.ErrForbidden
	}
	k.current = next
	return nil
}
