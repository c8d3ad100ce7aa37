// AngelaMos | 2026
// entity_test.go

package subscriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierRankOrdering(t *testing.T) {
	assert.Less(t, TierRank(TierFree), TierRank(TierStarter))
	assert.Less(t, TierRank(TierStarter), TierRank(TierPro))
	assert.Equal(t, TierRank(TierFree), TierRank("mystery"))
}

func TestIsValidTier(t *testing.T) {
	assert.True(t, IsValidTier(TierFree))
	assert.True(t, IsValidTier(TierStarter))
	assert.True(t, IsValidTier(TierPro))
	assert.False(t, IsValidTier("platinum"))
	assert.False(t, IsValidTier(""))
}

func TestActiveAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		sub  Subscriber
		want bool
	}{
		{
			name: "subscribed without expiry",
			sub:  Subscriber{Subscribed: true},
			want: true,
		},
		{
			name: "subscribed before expiry",
			sub:  Subscriber{Subscribed: true, ExpiresAt: &future},
			want: true,
		},
		{
			name: "expiry instant itself is still active",
			sub:  Subscriber{Subscribed: true, ExpiresAt: &now},
			want: true,
		},
		{
			name: "lapsed",
			sub:  Subscriber{Subscribed: true, ExpiresAt: &past},
			want: false,
		},
		{
			name: "never subscribed",
			sub:  Subscriber{Subscribed: false},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.ActiveAt(now))
		})
	}
}

func TestGrantPatch(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2024, 6, 1, 14, 30, 0, 0, loc)

	patch := GrantPatch(TierPro, now, 30)

	assert.Equal(t, TierPro, patch.Tier)
	assert.True(t, patch.Subscribed)
	require.NotNil(t, patch.TierEffectiveAt)
	assert.Equal(t, time.UTC, patch.TierEffectiveAt.Location())
	assert.True(t, patch.TierEffectiveAt.Equal(now))
	require.NotNil(t, patch.ExpiresAt)
	assert.Equal(
		t,
		patch.TierEffectiveAt.AddDate(0, 0, 30),
		*patch.ExpiresAt,
	)
}

func TestDowngradePatch(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	patch := DowngradePatch(now)

	assert.Equal(t, TierFree, patch.Tier)
	assert.False(t, patch.Subscribed)
	assert.Nil(t, patch.ExpiresAt)
}
