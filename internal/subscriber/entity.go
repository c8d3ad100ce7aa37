// AngelaMos | 2026
// entity.go

package subscriber

import (
	"time"
)

// Subscriber is the billing identity behind a PostFlow account. The row is
// created at first registration and never deleted; losing a subscription
// only downgrades it. Tier fields are mutated exclusively through
// version-guarded updates so concurrent redemptions and webhook-driven
// changes cannot overwrite each other.
type Subscriber struct {
	ID              string     `db:"id"`
	Email           string     `db:"email"`
	PasswordHash    string     `db:"password_hash"`
	Name            string     `db:"name"`
	Role            string     `db:"role"`
	Tier            string     `db:"tier"`
	Subscribed      bool       `db:"subscribed"`
	TierEffectiveAt *time.Time `db:"tier_effective_at"`
	ExpiresAt       *time.Time `db:"expires_at"`
	TokenVersion    int        `db:"token_version"`
	Version         int        `db:"version"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	TierFree    = "free"
	TierStarter = "starter"
	TierPro     = "pro"
)

var tierRank = map[string]int{
	TierFree:    0,
	TierStarter: 1,
	TierPro:     2,
}

// TierRank orders tiers Free < Starter < Pro. Unknown tiers rank as Free.
func TierRank(tier string) int {
	return tierRank[tier]
}

func IsValidTier(tier string) bool {
	_, ok := tierRank[tier]
	return ok
}

func (s *Subscriber) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s *Subscriber) IsPaidTier() bool {
	return s.Tier == TierStarter || s.Tier == TierPro
}

// ActiveAt reports whether the subscription grant is live at the given
// instant. A granted subscription lapses at expires_at without any
// background job; every read evaluates it fresh.
func (s *Subscriber) ActiveAt(now time.Time) bool {
	if !s.Subscribed {
		return false
	}
	if s.ExpiresAt != nil && now.After(*s.ExpiresAt) {
		return false
	}
	return true
}

// TierPatch is the unit of tier mutation. Every path that changes a tier
// (promo redemption, admin override, window extension, downgrade) builds
// one of these and applies it with a version-guarded update.
type TierPatch struct {
	Tier            string
	Subscribed      bool
	TierEffectiveAt *time.Time
	ExpiresAt       *time.Time
}

// GrantPatch builds the patch for granting a paid tier anchored at now and
// lapsing after validityDays.
func GrantPatch(tier string, now time.Time, validityDays int) TierPatch {
	effective := now.UTC()
	expires := effective.AddDate(0, 0, validityDays)
	return TierPatch{
		Tier:            tier,
		Subscribed:      true,
		TierEffectiveAt: &effective,
		ExpiresAt:       &expires,
	}
}

// DowngradePatch builds the patch that returns a subscriber to the free
// tier. tier=free whenever subscribed=false.
func DowngradePatch(now time.Time) TierPatch {
	effective := now.UTC()
	return TierPatch{
		Tier:            TierFree,
		Subscribed:      false,
		TierEffectiveAt: &effective,
		ExpiresAt:       nil,
	}
}
