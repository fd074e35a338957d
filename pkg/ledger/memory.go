package ledger

import (
	"context"
	"sync"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
)

// MemoryLedger keeps the full append history per channel and key. It is the
// default backend for development and tests, and the reference behavior for
// other implementations.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]map[string][]Entry // channel -> key -> history
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]map[string][]Entry),
	}
}

func (l *MemoryLedger) Append(ctx context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	channel, ok := l.entries[entry.Channel]
	if !ok {
		channel = make(map[string][]Entry)
		l.entries[entry.Channel] = channel
	}
	channel[entry.Key] = append(channel[entry.Key], entry)
	return nil
}

func (l *MemoryLedger) Latest(ctx context.Context, channel, key string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.entries[channel][key]
	if len(history) == 0 {
		return Entry{}, apperrors.ErrNotFound
	}
	return history[len(history)-1], nil
}

func (l *MemoryLedger) History(ctx context.Context, channel, key string) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.entries[channel][key]
	if len(history) == 0 {
		return nil, apperrors.ErrNotFound
	}
	out := make([]Entry, len(history))
	copy(out, history)
	return out, nil
}

func (l *MemoryLedger) Close() {}

var _ Ledger = (*MemoryLedger)(nil)
