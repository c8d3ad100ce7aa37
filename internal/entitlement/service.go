// AngelaMos | 2026
// service.go

package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postflowhq/postflow-api/internal/config"
	"github.com/postflowhq/postflow-api/internal/core"
	"github.com/postflowhq/postflow-api/internal/subscriber"
	"github.com/postflowhq/postflow-api/internal/usage"
)

const snapshotKeyPrefix = "entitlement:snapshot:"

// SubscriberStore is the slice of the subscriber repository this service
// needs: reads for snapshots, the version-guarded tier update for window
// extensions.
type SubscriberStore interface {
	GetByID(ctx context.Context, id string) (*subscriber.Subscriber, error)
	UpdateTierConditional(
		ctx context.Context,
		id string,
		expectedVersion int,
		patch subscriber.TierPatch,
	) error
}

// Service assembles entitlement snapshots and applies admin window
// extensions. Snapshots are cached briefly in Redis; every write path that
// can change a subscriber's entitlements must call InvalidateSnapshot so the
// cache only ever serves a few seconds of staleness, never a wrong tier.
type Service struct {
	subscribers SubscriberStore
	usage       *usage.Service
	gate        *Gate
	redis       *core.Redis
	cfg         config.BillingConfig
	logger      *slog.Logger
}

func NewService(
	subscribers SubscriberStore,
	usageService *usage.Service,
	gate *Gate,
	redis *core.Redis,
	cfg config.BillingConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		subscribers: subscribers,
		usage:       usageService,
		gate:        gate,
		redis:       redis,
		cfg:         cfg,
		logger:      logger,
	}
}

// GetSnapshot returns the entitlement snapshot for a subscriber, serving
// from cache when a fresh copy exists.
func (s *Service) GetSnapshot(
	ctx context.Context,
	userID string,
	now time.Time,
) (*Snapshot, error) {
	if cached := s.cachedSnapshot(ctx, userID); cached != nil {
		return cached, nil
	}

	snapshot, err := s.computeSnapshot(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, userID, snapshot)
	return snapshot, nil
}

// ComputeSnapshot builds a snapshot straight from the primary store,
// bypassing the cache. Gating decisions on the write path use this so a
// stale cache entry can never admit a post the store would reject.
func (s *Service) ComputeSnapshot(
	ctx context.Context,
	userID string,
	now time.Time,
) (*Snapshot, error) {
	return s.computeSnapshot(ctx, userID, now)
}

func (s *Service) computeSnapshot(
	ctx context.Context,
	userID string,
	now time.Time,
) (*Snapshot, error) {
	sub, err := s.subscribers.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscriber: %w", err)
	}

	window := ComputeWindow(sub, now, s.cfg.WindowDays)

	var counts usage.Counts
	if window.Open {
		counts, err = s.usage.CurrentAndPrevious(
			ctx,
			userID,
			window.Start,
			window.End,
		)
		if err != nil {
			return nil, fmt.Errorf("count usage: %w", err)
		}
	}

	return &Snapshot{
		UserID:     sub.ID,
		Tier:       sub.Tier,
		Subscribed: sub.Subscribed,
		Window:     window,
		Usage:      counts,
		PostQuota:  s.postQuota(sub.Tier),
		Platforms:  s.gate.Allowed(sub.Tier),
		ComputedAt: now.UTC(),
	}, nil
}

// ExtendWindow resets the subscriber's window anchor to now, re-opening a
// closed window or restarting an open one. It reports false without writing
// anything when the subscriber has no active paid tier: there is no window
// to extend on the free tier, and that outcome is not an error.
func (s *Service) ExtendWindow(
	ctx context.Context,
	userID string,
	now time.Time,
) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		sub, err := s.subscribers.GetByID(ctx, userID)
		if err != nil {
			return false, fmt.Errorf("load subscriber: %w", err)
		}

		if !sub.IsPaidTier() || !sub.ActiveAt(now) {
			return false, nil
		}

		anchor := now.UTC()
		patch := subscriber.TierPatch{
			Tier:            sub.Tier,
			Subscribed:      true,
			TierEffectiveAt: &anchor,
			ExpiresAt:       sub.ExpiresAt,
		}

		err = s.subscribers.UpdateTierConditional(ctx, sub.ID, sub.Version, patch)
		if errors.Is(err, core.ErrConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("extend window: %w", err)
		}

		s.InvalidateSnapshot(ctx, userID)
		s.logger.Info("creation window extended",
			"user_id", userID,
			"tier", sub.Tier,
		)
		return true, nil
	}

	return false, fmt.Errorf("extend window: %w", core.ErrConflict)
}

// InvalidateSnapshot drops the cached snapshot for a subscriber. Safe to
// call when no entry exists.
func (s *Service) InvalidateSnapshot(ctx context.Context, userID string) {
	if err := s.redis.Client.Del(ctx, snapshotKeyPrefix+userID).Err(); err != nil {
		s.logger.Warn("snapshot cache invalidation failed",
			"user_id", userID,
			"error", err,
		)
	}
}

func (s *Service) cachedSnapshot(ctx context.Context, userID string) *Snapshot {
	raw, err := s.redis.Client.Get(ctx, snapshotKeyPrefix+userID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("snapshot cache read failed",
				"user_id", userID,
				"error", err,
			)
		}
		return nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		s.logger.Warn("snapshot cache entry corrupt",
			"user_id", userID,
			"error", err,
		)
		return nil
	}

	return &snapshot
}

func (s *Service) cacheSnapshot(
	ctx context.Context,
	userID string,
	snapshot *Snapshot,
) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}

	err = s.redis.Client.Set(
		ctx,
		snapshotKeyPrefix+userID,
		raw,
		s.cfg.SnapshotCacheTTL,
	).Err()
	if err != nil {
		s.logger.Warn("snapshot cache write failed",
			"user_id", userID,
			"error", err,
		)
	}
}

func (s *Service) postQuota(tier string) int {
	if quota, ok := s.cfg.TierPostQuota[tier]; ok {
		return quota
	}
	return s.cfg.TierPostQuota[subscriber.TierFree]
}
