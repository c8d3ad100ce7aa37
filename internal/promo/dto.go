// AngelaMos | 2026
// dto.go

package promo

import (
	"time"
)

type RedeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// RedemptionResult is what a successful redemption grants: the new tier and
// when it lapses. The creation window restarts at the redemption instant.
type RedemptionResult struct {
	Tier      string     `json:"tier"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type CreateCodeRequest struct {
	Code           string     `json:"code" validate:"required,max=64"`
	GrantedTier    string     `json:"granted_tier" validate:"required,oneof=starter pro"`
	ValidityDays   int        `json:"validity_days" validate:"required,min=1,max=365"`
	MaxRedemptions *int       `json:"max_redemptions" validate:"omitempty,min=1"`
	PerUserOnce    *bool      `json:"per_user_once"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

type CodeResponse struct {
	Code            string     `json:"code"`
	GrantedTier     string     `json:"granted_tier"`
	ValidityDays    int        `json:"validity_days"`
	MaxRedemptions  *int       `json:"max_redemptions"`
	RedemptionCount int        `json:"redemption_count"`
	PerUserOnce     bool       `json:"per_user_once"`
	ExpiresAt       *time.Time `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

func ToCodeResponse(c *PromoCode) CodeResponse {
	return CodeResponse{
		Code:            c.Code,
		GrantedTier:     c.GrantedTier,
		ValidityDays:    c.ValidityDays,
		MaxRedemptions:  c.MaxRedemptions,
		RedemptionCount: c.RedemptionCount,
		PerUserOnce:     c.PerUserOnce,
		ExpiresAt:       c.ExpiresAt,
		CreatedAt:       c.CreatedAt,
	}
}

func ToCodeResponseList(codes []PromoCode) []CodeResponse {
	out := make([]CodeResponse, len(codes))
	for i := range codes {
		out[i] = ToCodeResponse(&codes[i])
	}
	return out
}
