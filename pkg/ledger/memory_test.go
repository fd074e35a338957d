package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
)

func TestNewEntry(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	entry, err := NewEntry(ChannelEntities, "e1", map[string]string{"entity_id": "e1"}, now)
	require.NoError(t, err)

	assert.Equal(t, ChannelEntities, entry.Channel)
	assert.Equal(t, "e1", entry.Key)
	assert.JSONEq(t, `{"entity_id":"e1"}`, string(entry.Payload))
	assert.Len(t, entry.Hash, 64)
	assert.Equal(t, now, entry.Timestamp)

	// Identical payloads hash identically.
	again, err := NewEntry(ChannelEntities, "e1", map[string]string{"entity_id": "e1"}, now)
	require.NoError(t, err)
	assert.Equal(t, entry.Hash, again.Hash)
}

func TestMemoryLedger_AppendAndLatest(t *testing.T) {
	ctx := context.Background()
	led := NewMemoryLedger()
	now := time.Now()

	first, err := NewEntry(ChannelEntities, "e1", map[string]string{"v": "1"}, now)
	require.NoError(t, err)
	second, err := NewEntry(ChannelEntities, "e1", map[string]string{"v": "2"}, now)
	require.NoError(t, err)

	require.NoError(t, led.Append(ctx, first))
	require.NoError(t, led.Append(ctx, second))

	latest, err := led.Latest(ctx, ChannelEntities, "e1")
	require.NoError(t, err)
	assert.Equal(t, second.Hash, latest.Hash)
}

func TestMemoryLedger_History(t *testing.T) {
	ctx := context.Background()
	led := NewMemoryLedger()
	now := time.Now()

	for _, v := range []string{"1", "2", "3"} {
		entry, err := NewEntry(ChannelRequests, "7", map[string]string{"v": v}, now)
		require.NoError(t, err)
		require.NoError(t, led.Append(ctx, entry))
	}

	history, err := led.History(ctx, ChannelRequests, "7")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.JSONEq(t, `{"v":"1"}`, string(history[0].Payload))
	assert.JSONEq(t, `{"v":"3"}`, string(history[2].Payload))
}

func TestMemoryLedger_NotFound(t *testing.T) {
	ctx := context.Background()
	led := NewMemoryLedger()

	_, err := led.Latest(ctx, ChannelEntities, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = led.History(ctx, ChannelEntities, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryLedger_ChannelsIsolated(t *testing.T) {
	ctx := context.Background()
	led := NewMemoryLedger()

	entry, err := NewEntry(ChannelEntities, "shared-key", map[string]string{"v": "1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, led.Append(ctx, entry))

	_, err = led.Latest(ctx, ChannelReferences, "shared-key")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
