// AngelaMos | 2026
// service_test.go

package entitlement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow-api/internal/core"
	"github.com/postflowhq/postflow-api/internal/subscriber"
	"github.com/postflowhq/postflow-api/internal/usage"
)

type fakeSubscriberStore struct {
	subs        map[string]*subscriber.Subscriber
	getCalls    int
	updateCalls int
	failUpdates int
}

func (f *fakeSubscriberStore) GetByID(
	_ context.Context,
	id string,
) (*subscriber.Subscriber, error) {
	f.getCalls++
	sub, ok := f.subs[id]
	if !ok {
		return nil, fmt.Errorf("get subscriber: %w", core.ErrNotFound)
	}
	clone := *sub
	return &clone, nil
}

func (f *fakeSubscriberStore) UpdateTierConditional(
	_ context.Context,
	id string,
	expectedVersion int,
	patch subscriber.TierPatch,
) error {
	f.updateCalls++
	if f.failUpdates > 0 {
		f.failUpdates--
		return fmt.Errorf("update tier: %w", core.ErrConflict)
	}

	sub, ok := f.subs[id]
	if !ok {
		return fmt.Errorf("update tier: %w", core.ErrNotFound)
	}
	if sub.Version != expectedVersion {
		return fmt.Errorf("update tier: %w", core.ErrConflict)
	}

	sub.Tier = patch.Tier
	sub.Subscribed = patch.Subscribed
	sub.TierEffectiveAt = patch.TierEffectiveAt
	sub.ExpiresAt = patch.ExpiresAt
	sub.Version++
	return nil
}

type fakeUsageRepo struct {
	counts     map[string]int
	countCalls int
}

func (f *fakeUsageRepo) Insert(_ context.Context, _ *usage.CreationEvent) error {
	return nil
}

func (f *fakeUsageRepo) CountInRange(
	_ context.Context,
	userID string,
	_ usage.Range,
) (int, error) {
	f.countCalls++
	return f.counts[userID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(
	t *testing.T,
	store *fakeSubscriberStore,
	usageRepo *fakeUsageRepo,
) *Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testBillingConfig()
	cfg.SnapshotCacheTTL = 30 * time.Second

	return NewService(
		store,
		usage.NewService(usageRepo, testLogger()),
		NewGate(cfg),
		&core.Redis{Client: client},
		cfg,
		testLogger(),
	)
}

func starterStore(anchor, expires time.Time) *fakeSubscriberStore {
	return &fakeSubscriberStore{
		subs: map[string]*subscriber.Subscriber{
			"sub-1": {
				ID:              "sub-1",
				Tier:            subscriber.TierStarter,
				Subscribed:      true,
				TierEffectiveAt: &anchor,
				ExpiresAt:       &expires,
				Version:         3,
			},
		},
	}
}

func TestGetSnapshot(t *testing.T) {
	anchor := ts("2024-01-01T00:00:00Z")
	now := ts("2024-01-20T00:00:00Z")
	store := starterStore(anchor, anchor.AddDate(0, 0, 60))
	usageRepo := &fakeUsageRepo{counts: map[string]int{"sub-1": 7}}

	svc := newTestService(t, store, usageRepo)

	snapshot, err := svc.GetSnapshot(context.Background(), "sub-1", now)
	require.NoError(t, err)

	assert.Equal(t, subscriber.TierStarter, snapshot.Tier)
	assert.True(t, snapshot.Subscribed)
	assert.True(t, snapshot.Window.Open)
	assert.Equal(t, 11, snapshot.Window.DaysRemaining)
	assert.Equal(t, 7, snapshot.Usage.Current)
	assert.Equal(t, 30, snapshot.PostQuota)
	assert.ElementsMatch(t, []Platform{
		PlatformMastodon, PlatformTelegram, PlatformFacebook,
	}, snapshot.Platforms)
}

func TestGetSnapshotServedFromCache(t *testing.T) {
	anchor := ts("2024-01-01T00:00:00Z")
	now := ts("2024-01-20T00:00:00Z")
	store := starterStore(anchor, anchor.AddDate(0, 0, 60))
	usageRepo := &fakeUsageRepo{counts: map[string]int{"sub-1": 2}}

	svc := newTestService(t, store, usageRepo)

	_, err := svc.GetSnapshot(context.Background(), "sub-1", now)
	require.NoError(t, err)
	require.Equal(t, 1, store.getCalls)

	_, err = svc.GetSnapshot(context.Background(), "sub-1", now)
	require.NoError(t, err)

	assert.Equal(t, 1, store.getCalls, "second read must not hit the store")
}

func TestInvalidateSnapshotForcesRecompute(t *testing.T) {
	anchor := ts("2024-01-01T00:00:00Z")
	now := ts("2024-01-20T00:00:00Z")
	store := starterStore(anchor, anchor.AddDate(0, 0, 60))
	usageRepo := &fakeUsageRepo{counts: map[string]int{"sub-1": 2}}

	svc := newTestService(t, store, usageRepo)
	ctx := context.Background()

	_, err := svc.GetSnapshot(ctx, "sub-1", now)
	require.NoError(t, err)

	svc.InvalidateSnapshot(ctx, "sub-1")

	_, err = svc.GetSnapshot(ctx, "sub-1", now)
	require.NoError(t, err)

	assert.Equal(t, 2, store.getCalls)
}

func TestGetSnapshotFreeTier(t *testing.T) {
	store := &fakeSubscriberStore{
		subs: map[string]*subscriber.Subscriber{
			"sub-1": {ID: "sub-1", Tier: subscriber.TierFree},
		},
	}
	usageRepo := &fakeUsageRepo{}

	svc := newTestService(t, store, usageRepo)

	snapshot, err := svc.GetSnapshot(
		context.Background(),
		"sub-1",
		ts("2024-01-20T00:00:00Z"),
	)
	require.NoError(t, err)

	assert.False(t, snapshot.Window.Open)
	assert.Equal(t, 0, snapshot.Window.DaysRemaining)
	assert.Equal(t, 0, snapshot.Usage.Current)
	assert.Equal(t, 0, snapshot.PostQuota)
	assert.ElementsMatch(t, []Platform{PlatformMastodon}, snapshot.Platforms)
	assert.Zero(t, usageRepo.countCalls, "closed window must not count usage")
}

func TestExtendWindowResetsAnchor(t *testing.T) {
	anchor := ts("2024-01-01T00:00:00Z")
	now := ts("2024-02-15T00:00:00Z")
	store := starterStore(anchor, anchor.AddDate(0, 0, 90))

	svc := newTestService(t, store, &fakeUsageRepo{})

	extended, err := svc.ExtendWindow(context.Background(), "sub-1", now)
	require.NoError(t, err)
	require.True(t, extended)

	sub := store.subs["sub-1"]
	require.NotNil(t, sub.TierEffectiveAt)
	assert.Equal(t, now.UTC(), *sub.TierEffectiveAt)
	assert.Equal(t, subscriber.TierStarter, sub.Tier)
	assert.Equal(t, 4, sub.Version)

	window := ComputeWindow(sub, now, 30)
	assert.True(t, window.Open)
	assert.Equal(t, 30, window.DaysRemaining)
}

func TestExtendWindowIneligible(t *testing.T) {
	now := ts("2024-02-15T00:00:00Z")

	tests := []struct {
		name string
		sub  *subscriber.Subscriber
	}{
		{
			name: "free tier",
			sub:  &subscriber.Subscriber{ID: "sub-1", Tier: subscriber.TierFree},
		},
		{
			name: "lapsed grant",
			sub: func() *subscriber.Subscriber {
				anchor := ts("2024-01-01T00:00:00Z")
				expired := ts("2024-01-31T00:00:00Z")
				return &subscriber.Subscriber{
					ID:              "sub-1",
					Tier:            subscriber.TierPro,
					Subscribed:      true,
					TierEffectiveAt: &anchor,
					ExpiresAt:       &expired,
				}
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeSubscriberStore{
				subs: map[string]*subscriber.Subscriber{"sub-1": tt.sub},
			}
			svc := newTestService(t, store, &fakeUsageRepo{})

			extended, err := svc.ExtendWindow(context.Background(), "sub-1", now)
			require.NoError(t, err)

			assert.False(t, extended)
			assert.Zero(t, store.updateCalls, "ineligible must not write")
		})
	}
}

func TestExtendWindowRetriesOnceOnConflict(t *testing.T) {
	anchor := ts("2024-01-01T00:00:00Z")
	store := starterStore(anchor, anchor.AddDate(0, 0, 90))
	store.failUpdates = 1

	svc := newTestService(t, store, &fakeUsageRepo{})

	extended, err := svc.ExtendWindow(
		context.Background(),
		"sub-1",
		ts("2024-01-15T00:00:00Z"),
	)
	require.NoError(t, err)

	assert.True(t, extended)
	assert.Equal(t, 2, store.updateCalls)
}

func TestExtendWindowGivesUpAfterSecondConflict(t *testing.T) {
	anchor := ts("2024-01-01T00:00:00Z")
	store := starterStore(anchor, anchor.AddDate(0, 0, 90))
	store.failUpdates = 2

	svc := newTestService(t, store, &fakeUsageRepo{})

	_, err := svc.ExtendWindow(
		context.Background(),
		"sub-1",
		ts("2024-01-15T00:00:00Z"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)
}
