// AngelaMos | 2026
// service.go

package promo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/postflowhq/postflow-api/internal/config"
	"github.com/postflowhq/postflow-api/internal/core"
	"github.com/postflowhq/postflow-api/internal/subscriber"
)

// SnapshotInvalidator drops any cached entitlement view for a subscriber
// after a redemption changes their tier.
type SnapshotInvalidator interface {
	InvalidateSnapshot(ctx context.Context, userID string)
}

// SubscriberSource provides the pre-grant read of the subscriber row; the
// row's version pins the conditional update inside the grant transaction.
type SubscriberSource interface {
	GetByID(ctx context.Context, id string) (*subscriber.Subscriber, error)
}

type Service struct {
	repo        Repository
	subscribers SubscriberSource
	applier     Applier
	cache       SnapshotInvalidator
	cfg         config.PromoConfig
	logger      *slog.Logger
}

func NewService(
	repo Repository,
	subscribers SubscriberSource,
	applier Applier,
	cache SnapshotInvalidator,
	cfg config.PromoConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:        repo,
		subscribers: subscribers,
		applier:     applier,
		cache:       cache,
		cfg:         cfg,
		logger:      logger,
	}
}

// Redeem applies a promo code to a subscriber. Checks run in a fixed order
// (format, existence, capacity, prior use, expiry) and any rejection leaves
// every store untouched. The grant itself is one transaction: the guarded
// counter increment, the redemption record, and the version-guarded tier
// patch commit together or not at all. The new grant replaces whatever
// window the subscriber had; it never extends it.
//
// A rejected redemption comes back as *PolicyError; anything else is an
// infrastructure failure.
func (s *Service) Redeem(
	ctx context.Context,
	userID, rawCode string,
	now time.Time,
) (*RedemptionResult, error) {
	code := NormalizeCode(rawCode)
	if !ValidFormat(code, s.cfg.CodeLength) {
		return nil, reject(RejectInvalidFormat)
	}

	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.redeemOnce(ctx, userID, code, now)
		if errors.Is(err, core.ErrConflict) && attempt == 0 {
			// Lost a race on the counter or the subscriber row. Re-run the
			// whole validation chain: the state that admitted us may be gone
			// (the last slot taken, the subscriber already granted).
			continue
		}
		if err != nil {
			return nil, err
		}

		s.cache.InvalidateSnapshot(ctx, userID)
		s.logger.Info("promo code redeemed",
			"user_id", userID,
			"code", code,
			"tier", result.Tier,
		)
		return result, nil
	}

	return nil, fmt.Errorf("redeem promo code: %w", core.ErrConflict)
}

func (s *Service) redeemOnce(
	ctx context.Context,
	userID, code string,
	now time.Time,
) (*RedemptionResult, error) {
	pc, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, core.ErrNotFound) {
		return nil, reject(RejectNotFound)
	}
	if err != nil {
		return nil, err
	}

	if pc.Exhausted() {
		return nil, reject(RejectExhausted)
	}

	if pc.PerUserOnce {
		redeemed, err := s.repo.HasRedemption(ctx, code, userID)
		if err != nil {
			return nil, err
		}
		if redeemed {
			return nil, reject(RejectAlreadyRedeemed)
		}
	}

	if pc.ExpiredAt(now) {
		return nil, reject(RejectExpired)
	}

	sub, err := s.subscribers.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	patch := subscriber.GrantPatch(pc.GrantedTier, now, pc.ValidityDays)

	err = s.applier.Apply(ctx, Grant{
		Code:            code,
		ExpectedCount:   pc.RedemptionCount,
		UserID:          userID,
		ExpectedVersion: sub.Version,
		Patch:           patch,
		RedeemedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	return &RedemptionResult{
		Tier:      patch.Tier,
		ExpiresAt: patch.ExpiresAt,
	}, nil
}

// CreateCode registers a new promo code (admin only).
func (s *Service) CreateCode(
	ctx context.Context,
	req CreateCodeRequest,
) (*PromoCode, error) {
	code := NormalizeCode(req.Code)
	if !ValidFormat(code, s.cfg.CodeLength) {
		return nil, fmt.Errorf(
			"create promo code: malformed code: %w",
			core.ErrInvalidInput,
		)
	}

	perUserOnce := true
	if req.PerUserOnce != nil {
		perUserOnce = *req.PerUserOnce
	}

	pc := &PromoCode{
		Code:           code,
		GrantedTier:    req.GrantedTier,
		ValidityDays:   req.ValidityDays,
		MaxRedemptions: req.MaxRedemptions,
		PerUserOnce:    perUserOnce,
		ExpiresAt:      req.ExpiresAt,
	}

	if err := s.repo.CreateCode(ctx, pc); err != nil {
		return nil, err
	}

	return pc, nil
}

func (s *Service) ListCodes(ctx context.Context) ([]PromoCode, error) {
	return s.repo.ListCodes(ctx)
}
