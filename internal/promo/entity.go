// AngelaMos | 2026
// entity.go

package promo

import (
	"strings"
	"time"
)

// PromoCode grants a paid tier for a fixed number of days. Codes are stored
// uppercase; redemption_count only ever moves through the guarded
// conditional update, never a blind increment.
type PromoCode struct {
	Code            string     `db:"code"`
	GrantedTier     string     `db:"granted_tier"`
	ValidityDays    int        `db:"validity_days"`
	MaxRedemptions  *int       `db:"max_redemptions"`
	RedemptionCount int        `db:"redemption_count"`
	PerUserOnce     bool       `db:"per_user_once"`
	ExpiresAt       *time.Time `db:"expires_at"`
	CreatedAt       time.Time  `db:"created_at"`
}

// Exhausted reports whether the code has no redemptions left. A NULL
// max_redemptions means unlimited.
func (c *PromoCode) Exhausted() bool {
	return c.MaxRedemptions != nil && c.RedemptionCount >= *c.MaxRedemptions
}

func (c *PromoCode) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// NormalizeCode maps user input onto the stored representation. Format
// validation happens after normalization, so case and surrounding
// whitespace never cause a rejection on their own.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidFormat reports whether a normalized code is structurally plausible:
// exactly length characters, uppercase alphanumeric. Codes that fail this
// are rejected before any store access.
func ValidFormat(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
