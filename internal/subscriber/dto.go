// AngelaMos | 2026
// dto.go

package subscriber

import (
	"time"
)

type UpdateProfileRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

// OverrideTierRequest is the admin tier override: the manual equivalent of
// a payment-provider webhook. Granting a paid tier restarts the creation
// window; granting free clears the subscription.
type OverrideTierRequest struct {
	Tier         string `json:"tier"          validate:"required,oneof=free starter pro"`
	ValidityDays int    `json:"validity_days" validate:"omitempty,min=1,max=730"`
}

type SubscriberResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Role            string     `json:"role"`
	Tier            string     `json:"tier"`
	Subscribed      bool       `json:"subscribed"`
	TierEffectiveAt *time.Time `json:"tier_effective_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ListParams struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Search     string `json:"search"`
	Tier       string `json:"tier"`
	Subscribed *bool  `json:"subscribed"`
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToSubscriberResponse(s *Subscriber) SubscriberResponse {
	return SubscriberResponse{
		ID:              s.ID,
		Email:           s.Email,
		Name:            s.Name,
		Role:            s.Role,
		Tier:            s.Tier,
		Subscribed:      s.Subscribed,
		TierEffectiveAt: s.TierEffectiveAt,
		ExpiresAt:       s.ExpiresAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func ToSubscriberResponseList(subs []Subscriber) []SubscriberResponse {
	responses := make([]SubscriberResponse, 0, len(subs))
	for _, s := range subs {
		responses = append(responses, ToSubscriberResponse(&s))
	}
	return responses
}
