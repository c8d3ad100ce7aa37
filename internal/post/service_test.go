// AngelaMos | 2026
// service_test.go

package post

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow-api/internal/entitlement"
	"github.com/postflowhq/postflow-api/internal/usage"
)

type fakeEntitlements struct {
	snapshot    *entitlement.Snapshot
	invalidated []string
}

func (f *fakeEntitlements) ComputeSnapshot(
	_ context.Context,
	_ string,
	_ time.Time,
) (*entitlement.Snapshot, error) {
	return f.snapshot, nil
}

func (f *fakeEntitlements) InvalidateSnapshot(
	_ context.Context,
	userID string,
) {
	f.invalidated = append(f.invalidated, userID)
}

type fakeScheduler struct {
	posts  []Post
	events []usage.CreationEvent
}

func (f *fakeScheduler) SaveScheduled(
	_ context.Context,
	post *Post,
	event *usage.CreationEvent,
) error {
	f.posts = append(f.posts, *post)
	f.events = append(f.events, *event)
	return nil
}

type fakePostRepo struct{}

func (f *fakePostRepo) Insert(_ context.Context, _ *Post) error { return nil }

func (f *fakePostRepo) ListByUser(
	_ context.Context,
	_ string,
	_, _ int,
) ([]Post, int, error) {
	return nil, 0, nil
}

func (f *fakePostRepo) Cancel(_ context.Context, _, _ string) error {
	return nil
}

func openSnapshot() *entitlement.Snapshot {
	return &entitlement.Snapshot{
		UserID:     "sub-1",
		Tier:       "starter",
		Subscribed: true,
		Window: entitlement.CreationWindow{
			Open:          true,
			DaysRemaining: 11,
		},
		Usage:     usage.Counts{Current: 5},
		PostQuota: 30,
		Platforms: []entitlement.Platform{
			entitlement.PlatformMastodon,
			entitlement.PlatformTelegram,
			entitlement.PlatformFacebook,
		},
	}
}

func newPostFixture(
	snapshot *entitlement.Snapshot,
) (*Service, *fakeEntitlements, *fakeScheduler) {
	ents := &fakeEntitlements{snapshot: snapshot}
	store := &fakeScheduler{}
	svc := NewService(
		&fakePostRepo{},
		store,
		ents,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, ents, store
}

func scheduleRequest(platform string) CreatePostRequest {
	return CreatePostRequest{
		Platform:    platform,
		Content:     "launch day!",
		ScheduledAt: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateAcceptsWithinEntitlements(t *testing.T) {
	svc, ents, store := newPostFixture(openSnapshot())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	created, err := svc.Create(
		context.Background(),
		"sub-1",
		scheduleRequest("telegram"),
		now,
	)
	require.NoError(t, err)

	assert.Equal(t, StatusScheduled, created.Status)
	assert.Equal(t, "telegram", created.Platform)
	assert.NotEmpty(t, created.ID)

	require.Len(t, store.posts, 1)
	require.Len(t, store.events, 1)
	assert.Equal(t, created.ID, store.posts[0].ID)
	assert.Equal(t, "telegram", store.events[0].Platform)
	assert.Equal(t, now, store.events[0].CreatedAt)

	assert.Equal(t, []string{"sub-1"}, ents.invalidated)
}

func TestCreateGateRejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(s *entitlement.Snapshot)
		platform string
		want     GateKind
	}{
		{
			name:     "closed window",
			mutate:   func(s *entitlement.Snapshot) { s.Window.Open = false },
			platform: "telegram",
			want:     GateWindowClosed,
		},
		{
			name:     "platform above tier",
			mutate:   func(s *entitlement.Snapshot) {},
			platform: "instagram",
			want:     GatePlatformNotAllowed,
		},
		{
			name: "quota exhausted",
			mutate: func(s *entitlement.Snapshot) {
				s.Usage.Current = 30
			},
			platform: "telegram",
			want:     GateQuotaExceeded,
		},
		{
			name: "window closed wins over platform",
			mutate: func(s *entitlement.Snapshot) {
				s.Window.Open = false
			},
			platform: "instagram",
			want:     GateWindowClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := openSnapshot()
			tt.mutate(snapshot)
			svc, ents, store := newPostFixture(snapshot)

			_, err := svc.Create(
				context.Background(),
				"sub-1",
				scheduleRequest(tt.platform),
				time.Now(),
			)

			var gateErr *GateError
			require.ErrorAs(t, err, &gateErr)
			assert.Equal(t, tt.want, gateErr.Kind)

			assert.Empty(t, store.posts, "rejection must not persist anything")
			assert.Empty(t, ents.invalidated)
		})
	}
}

func TestCreateUnlimitedQuota(t *testing.T) {
	snapshot := openSnapshot()
	snapshot.PostQuota = -1
	snapshot.Usage.Current = 100000
	svc, _, store := newPostFixture(snapshot)

	_, err := svc.Create(
		context.Background(),
		"sub-1",
		scheduleRequest("telegram"),
		time.Now(),
	)

	require.NoError(t, err)
	assert.Len(t, store.posts, 1)
}

func TestCreateLastQuotaSlot(t *testing.T) {
	snapshot := openSnapshot()
	snapshot.Usage.Current = 29
	svc, _, _ := newPostFixture(snapshot)

	_, err := svc.Create(
		context.Background(),
		"sub-1",
		scheduleRequest("telegram"),
		time.Now(),
	)

	require.NoError(t, err)
}
