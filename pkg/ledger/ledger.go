// Package ledger is the engine's durability boundary. Every successful
// mutation is appended here before it becomes visible in memory; an append
// failure leaves the in-memory state unchanged, so the stored history is
// always replayable into the current state.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Channels partition the ledger by record ownership, one per component.
const (
	ChannelEntities     = "entities"
	ChannelPermissions  = "permissions"
	ChannelReferences   = "references"
	ChannelRequests     = "requests"
	ChannelFulfillments = "fulfillments"
)

// Entry is one committed record: the post-mutation state of a single keyed
// record on a channel, with a content hash over the payload.
type Entry struct {
	Channel   string    `json:"channel"`
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	Hash      string    `json:"hash"` // sha256 over the payload
	Timestamp time.Time `json:"timestamp"`
}

// NewEntry marshals record and builds its entry for the given channel/key.
func NewEntry(channel, key string, record any, now time.Time) (Entry, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal ledger record for %s/%s: %w", channel, key, err)
	}
	sum := sha256.Sum256(payload)
	return Entry{
		Channel:   channel,
		Key:       key,
		Payload:   payload,
		Hash:      hex.EncodeToString(sum[:]),
		Timestamp: now.UTC(),
	}, nil
}

// Ledger durably records engine state transitions.
type Ledger interface {
	// Append commits the entry. On error nothing was recorded and the caller
	// must not apply the corresponding in-memory change.
	Append(ctx context.Context, entry Entry) error
	// Latest returns the most recent entry for a channel/key pair.
	Latest(ctx context.Context, channel, key string) (Entry, error)
	// History returns all entries for a channel/key pair in commit order.
	History(ctx context.Context, channel, key string) ([]Entry, error)
	Close()
}
