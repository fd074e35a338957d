package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
	"github.com/veilshare-inc/veilshare-engine/pkg/ledger"
	"github.com/veilshare-inc/veilshare-engine/pkg/testhelpers"
)

func TestPostgresLedger_Integration(t *testing.T) {
	db := testhelpers.GetLedgerDB(t)
	ctx := context.Background()

	led, err := ledger.NewPostgresLedger(ctx, &ledger.PostgresConfig{
		URL:            db.ConnStr,
		MaxConnections: 5,
	})
	require.NoError(t, err)
	defer led.Close()

	now := time.Now()
	first, err := ledger.NewEntry(ledger.ChannelEntities, "pg-e1", map[string]string{"v": "1"}, now)
	require.NoError(t, err)
	second, err := ledger.NewEntry(ledger.ChannelEntities, "pg-e1", map[string]string{"v": "2"}, now.Add(time.Second))
	require.NoError(t, err)

	require.NoError(t, led.Append(ctx, first))
	require.NoError(t, led.Append(ctx, second))

	latest, err := led.Latest(ctx, ledger.ChannelEntities, "pg-e1")
	require.NoError(t, err)
	assert.Equal(t, second.Hash, latest.Hash)

	history, err := led.History(ctx, ledger.ChannelEntities, "pg-e1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.Hash, history[0].Hash)
	assert.Equal(t, second.Hash, history[1].Hash)

	_, err = led.Latest(ctx, ledger.ChannelEntities, "pg-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
