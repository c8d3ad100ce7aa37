// AngelaMos | 2026
// window_test.go

package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow-api/internal/subscriber"
)

func ts(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func paidSubscriber(tier string, anchor time.Time) *subscriber.Subscriber {
	expires := anchor.AddDate(0, 0, 60)
	return &subscriber.Subscriber{
		ID:              "sub-1",
		Tier:            tier,
		Subscribed:      true,
		TierEffectiveAt: &anchor,
		ExpiresAt:       &expires,
	}
}

func TestComputeWindow(t *testing.T) {
	anchor := ts("2024-01-01T00:00:00Z")

	tests := []struct {
		name          string
		sub           *subscriber.Subscriber
		now           time.Time
		wantOpen      bool
		wantRemaining int
	}{
		{
			name:          "mid window",
			sub:           paidSubscriber(subscriber.TierStarter, anchor),
			now:           ts("2024-01-20T00:00:00Z"),
			wantOpen:      true,
			wantRemaining: 11,
		},
		{
			name:          "first instant",
			sub:           paidSubscriber(subscriber.TierPro, anchor),
			now:           anchor,
			wantOpen:      true,
			wantRemaining: 30,
		},
		{
			name:          "partial day rounds up",
			sub:           paidSubscriber(subscriber.TierStarter, anchor),
			now:           ts("2024-01-30T23:59:59Z"),
			wantOpen:      true,
			wantRemaining: 1,
		},
		{
			name:          "end boundary is inclusive",
			sub:           paidSubscriber(subscriber.TierStarter, anchor),
			now:           ts("2024-01-31T00:00:00Z"),
			wantOpen:      true,
			wantRemaining: 0,
		},
		{
			name:          "one second past end",
			sub:           paidSubscriber(subscriber.TierStarter, anchor),
			now:           ts("2024-01-31T00:00:01Z"),
			wantOpen:      false,
			wantRemaining: 0,
		},
		{
			name: "free tier has no window",
			sub: &subscriber.Subscriber{
				Tier:            subscriber.TierFree,
				Subscribed:      true,
				TierEffectiveAt: &anchor,
			},
			now:      ts("2024-01-02T00:00:00Z"),
			wantOpen: false,
		},
		{
			name: "unsubscribed",
			sub: &subscriber.Subscriber{
				Tier:            subscriber.TierPro,
				Subscribed:      false,
				TierEffectiveAt: &anchor,
			},
			now:      ts("2024-01-02T00:00:00Z"),
			wantOpen: false,
		},
		{
			name: "missing anchor",
			sub: &subscriber.Subscriber{
				Tier:       subscriber.TierPro,
				Subscribed: true,
			},
			now:      ts("2024-01-02T00:00:00Z"),
			wantOpen: false,
		},
		{
			name:     "anchor in the future",
			sub:      paidSubscriber(subscriber.TierStarter, anchor),
			now:      ts("2023-12-31T23:59:59Z"),
			wantOpen: false,
		},
		{
			name: "lapsed grant",
			sub: func() *subscriber.Subscriber {
				sub := paidSubscriber(subscriber.TierStarter, anchor)
				lapsed := ts("2024-01-10T00:00:00Z")
				sub.ExpiresAt = &lapsed
				return sub
			}(),
			now:      ts("2024-01-15T00:00:00Z"),
			wantOpen: false,
		},
		{
			name:     "nil subscriber",
			sub:      nil,
			now:      ts("2024-01-02T00:00:00Z"),
			wantOpen: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := ComputeWindow(tt.sub, tt.now, 30)

			assert.Equal(t, tt.wantOpen, window.Open)
			assert.Equal(t, tt.wantRemaining, window.DaysRemaining)
		})
	}
}

func TestComputeWindowZoneIndependence(t *testing.T) {
	anchor := ts("2024-01-01T00:00:00Z")
	sub := paidSubscriber(subscriber.TierStarter, anchor)

	loc := time.FixedZone("UTC+5", 5*3600)
	nowUTC := ts("2024-01-20T00:00:00Z")
	nowLocal := nowUTC.In(loc)

	assert.Equal(
		t,
		ComputeWindow(sub, nowUTC, 30),
		ComputeWindow(sub, nowLocal, 30),
	)
}

func TestComputeWindowBounds(t *testing.T) {
	anchor := ts("2024-01-01T00:00:00Z")
	window := ComputeWindow(
		paidSubscriber(subscriber.TierPro, anchor),
		ts("2024-01-05T00:00:00Z"),
		30,
	)

	require.True(t, window.Open)
	assert.Equal(t, anchor, window.Start)
	assert.Equal(t, anchor.Add(30*24*time.Hour), window.End)
}

func TestPreviousPeriodIsDisjointAndContiguous(t *testing.T) {
	anchor := ts("2024-03-01T00:00:00Z")
	window := ComputeWindow(
		paidSubscriber(subscriber.TierStarter, anchor),
		ts("2024-03-10T00:00:00Z"),
		30,
	)

	prevStart, prevEnd := window.PreviousPeriod()

	assert.Equal(t, window.Start, prevEnd)
	assert.Equal(t, window.Start.Add(-30*24*time.Hour), prevStart)
	assert.Equal(t, window.End.Sub(window.Start), prevEnd.Sub(prevStart))
}
