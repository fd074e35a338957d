package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
	"github.com/veilshare-inc/veilshare-engine/pkg/audit"
	"github.com/veilshare-inc/veilshare-engine/pkg/authority"
	"github.com/veilshare-inc/veilshare-engine/pkg/ledger"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
	"github.com/veilshare-inc/veilshare-engine/pkg/repositories"
)

type lifecycleFixture struct {
	admin     authority.Authority
	clock     *fakeClock
	trail     *audit.Trail
	lifecycle LifecycleService
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	admin := authority.FromToken("test-admin-token")
	clock := newFakeClock()
	trail := audit.NewTrail(zap.NewNop()).WithClock(clock.Now)

	return &lifecycleFixture{
		admin:     admin,
		clock:     clock,
		trail:     trail,
		lifecycle: NewLifecycleService(repositories.NewRequestRepository(), authority.NewKeeper(admin), trail, ledger.NewMemoryLedger(), zap.NewNop(), clock.Now),
	}
}

func TestLifecycleService_CreateRequest(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	id, err := f.lifecycle.CreateRequest(ctx, "alice", "temperature", "aggregate study", models.LevelResearcher, 720*time.Hour)
	require.NoError(t, err)

	req, err := f.lifecycle.GetDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, "alice", req.Requester)
	assert.Equal(t, f.clock.Now().Add(720*time.Hour), req.ExpiresAt)

	// Ids increase monotonically.
	second, err := f.lifecycle.CreateRequest(ctx, "bob", "heart_rate", "", models.LevelPublic, time.Hour)
	require.NoError(t, err)
	assert.Greater(t, second, id)
}

func TestLifecycleService_CreateRequest_Validation(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	_, err := f.lifecycle.CreateRequest(ctx, "", "temperature", "p", models.LevelPublic, time.Hour)
	assert.Error(t, err)

	_, err = f.lifecycle.CreateRequest(ctx, "alice", "temperature", "p", models.AccessLevel(42), time.Hour)
	assert.Error(t, err)
}

func TestLifecycleService_SetStatus(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	id, err := f.lifecycle.CreateRequest(ctx, "alice", "temperature", "p", models.LevelPublic, time.Hour)
	require.NoError(t, err)

	// Pending may not jump straight to fulfilled.
	assert.ErrorIs(t, f.lifecycle.SetStatus(ctx, f.admin, id, models.StatusFulfilled), apperrors.ErrInvalidTransition)
	assert.ErrorIs(t, f.lifecycle.SetStatus(ctx, f.admin, id, models.StatusPending), apperrors.ErrInvalidTransition)

	require.NoError(t, f.lifecycle.SetStatus(ctx, f.admin, id, models.StatusApproved))

	req, err := f.lifecycle.GetDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, req.Status)

	// Approved may still be rejected, but not re-approved.
	assert.ErrorIs(t, f.lifecycle.SetStatus(ctx, f.admin, id, models.StatusApproved), apperrors.ErrInvalidTransition)
	require.NoError(t, f.lifecycle.SetStatus(ctx, f.admin, id, models.StatusRejected))

	// Rejected is terminal.
	assert.ErrorIs(t, f.lifecycle.SetStatus(ctx, f.admin, id, models.StatusApproved), apperrors.ErrInvalidTransition)

	assert.ErrorIs(t, f.lifecycle.SetStatus(ctx, authority.FromToken("wrong"), id, models.StatusApproved), apperrors.ErrForbidden)
	assert.ErrorIs(t, f.lifecycle.SetStatus(ctx, f.admin, 999, models.StatusApproved), apperrors.ErrNotFound)
}

func TestLifecycleService_Fulfill(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	id, err := f.lifecycle.CreateRequest(ctx, "alice", "temperature", "p", models.LevelPublic, time.Hour)
	require.NoError(t, err)

	// Only approved requests can be fulfilled.
	assert.ErrorIs(t, f.lifecycle.Fulfill(ctx, f.admin, id, "sha256:payload"), apperrors.ErrInvalidTransition)

	require.NoError(t, f.lifecycle.SetStatus(ctx, f.admin, id, models.StatusApproved))
	require.NoError(t, f.lifecycle.Fulfill(ctx, f.admin, id, "sha256:payload"))

	req, err := f.lifecycle.GetDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFulfilled, req.Status)
	assert.Equal(t, "sha256:payload", req.FulfillmentPointer)

	// Fulfilled is terminal.
	assert.ErrorIs(t, f.lifecycle.Fulfill(ctx, f.admin, id, "sha256:again"), apperrors.ErrInvalidTransition)
}

func TestLifecycleService_Fulfill_Expired(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	id, err := f.lifecycle.CreateRequest(ctx, "alice", "temperature", "p", models.LevelPublic, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.lifecycle.SetStatus(ctx, f.admin, id, models.StatusApproved))

	f.clock.Advance(2 * time.Hour)

	// The fulfillment fails but the stored status stays approved.
	assert.ErrorIs(t, f.lifecycle.Fulfill(ctx, f.admin, id, "sha256:late"), apperrors.ErrExpired)

	req, err := f.lifecycle.GetDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, req.Status)
	assert.Empty(t, req.FulfillmentPointer)

	// An explicit rejection retires it.
	require.NoError(t, f.lifecycle.SetStatus(ctx, f.admin, id, models.StatusRejected))
}

func TestLifecycleService_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	id, err := f.lifecycle.CreateRequest(ctx, "alice", "temperature", "p", models.LevelPublic, time.Hour)
	require.NoError(t, err)

	// Only the requester may cancel, and only while pending.
	assert.ErrorIs(t, f.lifecycle.Cancel(ctx, id, "bob"), apperrors.ErrForbidden)
	require.NoError(t, f.lifecycle.Cancel(ctx, id, "alice"))

	req, err := f.lifecycle.GetDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, req.Status)

	assert.ErrorIs(t, f.lifecycle.Cancel(ctx, id, "alice"), apperrors.ErrInvalidTransition)

	approved, err := f.lifecycle.CreateRequest(ctx, "alice", "temperature", "p", models.LevelPublic, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.lifecycle.SetStatus(ctx, f.admin, approved, models.StatusApproved))
	assert.ErrorIs(t, f.lifecycle.Cancel(ctx, approved, "alice"), apperrors.ErrInvalidTransition)
}

func TestLifecycleService_GetByRequester(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	first, err := f.lifecycle.CreateRequest(ctx, "alice", "temperature", "p", models.LevelPublic, time.Hour)
	require.NoError(t, err)
	_, err = f.lifecycle.CreateRequest(ctx, "bob", "heart_rate", "p", models.LevelPublic, time.Hour)
	require.NoError(t, err)

	var ids []uint64
	seq := f.lifecycle.GetByRequester(ctx, "alice")
	for req := range seq {
		ids = append(ids, req.RequestID)
	}
	assert.Equal(t, []uint64{first}, ids)

	// The sequence picks up requests created after it was obtained.
	second, err := f.lifecycle.CreateRequest(ctx, "alice", "humidity", "p", models.LevelPublic, time.Hour)
	require.NoError(t, err)

	ids = ids[:0]
	for req := range seq {
		ids = append(ids, req.RequestID)
	}
	assert.Equal(t, []uint64{first, second}, ids)
}

func TestLifecycleService_GetAll(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.lifecycle.CreateRequest(ctx, "alice", "temperature", "p", models.LevelPublic, time.Hour)
		require.NoError(t, err)
	}

	var count int
	for range f.lifecycle.GetAll(ctx) {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestLifecycleService_PurposeInjectionRecorded(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture(t)

	id, err := f.lifecycle.CreateRequest(ctx, "mallory", "temperature", "x'; DROP TABLE requests--", models.LevelPublic, time.Hour)
	require.NoError(t, err)

	// The request was created anyway, purpose stored verbatim.
	req, err := f.lifecycle.GetDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "x'; DROP TABLE requests--", req.Purpose)

	var sawAttempt bool
	for _, event := range f.trail.Events() {
		if event.Type == models.EventInjectionAttempt {
			sawAttempt = true
			assert.Equal(t, "mallory", event.Subject)
		}
	}
	assert.True(t, sawAttempt)
}
