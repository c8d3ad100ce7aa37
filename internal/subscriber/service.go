// AngelaMos | 2026
// service.go

package subscriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow-api/internal/auth"
	"github.com/postflowhq/postflow-api/internal/core"
)

type Service struct {
	repo Repository

	// onTierChange runs after a successful tier mutation. The entitlement
	// layer hooks its snapshot cache invalidation in here at wire-up time.
	onTierChange func(ctx context.Context, userID string)
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetTierChangeHook registers a callback invoked whenever a subscriber's
// tier changes. Must be called during wiring, before the service handles
// requests.
func (s *Service) SetTierChangeHook(hook func(ctx context.Context, userID string)) {
	s.onTierChange = hook
}

func (s *Service) notifyTierChange(ctx context.Context, userID string) {
	if s.onTierChange != nil {
		s.onTierChange(ctx, userID)
	}
}

// GetByID satisfies auth.UserProvider.
func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(sub), nil
}

// GetByEmail satisfies auth.UserProvider.
func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	sub, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(sub), nil
}

// Create satisfies auth.UserProvider. A subscriber row is born at first
// registration: free tier, not subscribed, no window anchor.
func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.UserInfo, error) {
	sub := &Subscriber{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Name:         name,
		Role:         RoleUser,
		Tier:         TierFree,
		Subscribed:   false,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	return toUserInfo(sub), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*Subscriber, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateProfileRequest,
) (*Subscriber, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	if req.Name != nil {
		if err := s.repo.UpdateName(ctx, userID, *req.Name); err != nil {
			return nil, err
		}
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) GetSubscriber(
	ctx context.Context,
	id string,
) (*Subscriber, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListSubscribers(
	ctx context.Context,
	params ListParams,
) ([]Subscriber, int, error) {
	return s.repo.List(ctx, params)
}

// OverrideTier is the admin stand-in for a payment-provider webhook.
// Granting a paid tier restarts the creation window at now; granting free
// downgrades. The patch goes through the version-guarded update, with one
// automatic retry if a concurrent mutation wins the first attempt.
func (s *Service) OverrideTier(
	ctx context.Context,
	id string,
	req OverrideTierRequest,
	now time.Time,
) (*Subscriber, error) {
	if !IsValidTier(req.Tier) {
		return nil, fmt.Errorf(
			"override tier: invalid tier %q: %w",
			req.Tier,
			core.ErrInvalidInput,
		)
	}

	validityDays := req.ValidityDays
	if validityDays == 0 {
		validityDays = 30
	}

	for attempt := 0; attempt < 2; attempt++ {
		sub, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		var patch TierPatch
		if req.Tier == TierFree {
			patch = DowngradePatch(now)
		} else {
			patch = GrantPatch(req.Tier, now, validityDays)
		}

		err = s.repo.UpdateTierConditional(ctx, id, sub.Version, patch)
		if err == nil {
			s.notifyTierChange(ctx, id)
			return s.repo.GetByID(ctx, id)
		}
		if errors.Is(err, core.ErrConflict) && attempt == 0 {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("override tier: %w", core.ErrConflict)
}

func toUserInfo(s *Subscriber) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           s.ID,
		Email:        s.Email,
		Name:         s.Name,
		PasswordHash: s.PasswordHash,
		Role:         s.Role,
		Tier:         s.Tier,
		TokenVersion: s.TokenVersion,
	}
}

var _ auth.UserProvider = (*Service)(nil)
