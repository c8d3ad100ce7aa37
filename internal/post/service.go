// AngelaMos | 2026
// service.go

package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow-api/internal/entitlement"
	"github.com/postflowhq/postflow-api/internal/usage"
)

// EntitlementSource supplies the gate's view of a subscriber. The intake
// path wants the uncached computation so a stale snapshot can never admit a
// post the store would reject.
type EntitlementSource interface {
	ComputeSnapshot(
		ctx context.Context,
		userID string,
		now time.Time,
	) (*entitlement.Snapshot, error)
	InvalidateSnapshot(ctx context.Context, userID string)
}

type Service struct {
	repo         Repository
	store        Scheduler
	entitlements EntitlementSource
	logger       *slog.Logger
}

func NewService(
	repo Repository,
	store Scheduler,
	entitlements EntitlementSource,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		store:        store,
		entitlements: entitlements,
		logger:       logger,
	}
}

// Create accepts a scheduled post if the caller's entitlements admit it.
// Gate order: window, platform, quota. On acceptance the post row and its
// creation event commit in one transaction, so the quota counter can never
// drift from the posts that exist.
func (s *Service) Create(
	ctx context.Context,
	userID string,
	req CreatePostRequest,
	now time.Time,
) (*Post, error) {
	snapshot, err := s.entitlements.ComputeSnapshot(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("gate post: %w", err)
	}

	if !snapshot.Window.Open {
		return nil, &GateError{Kind: GateWindowClosed}
	}

	platform := entitlement.Platform(req.Platform)
	if !containsPlatform(snapshot.Platforms, platform) {
		return nil, &GateError{Kind: GatePlatformNotAllowed}
	}

	if snapshot.PostQuota >= 0 && snapshot.Usage.Current >= snapshot.PostQuota {
		return nil, &GateError{Kind: GateQuotaExceeded}
	}

	post := &Post{
		ID:          uuid.New().String(),
		UserID:      userID,
		Platform:    req.Platform,
		Content:     req.Content,
		ScheduledAt: req.ScheduledAt,
		Status:      StatusScheduled,
	}

	event := &usage.CreationEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Platform:  req.Platform,
		CreatedAt: now.UTC(),
	}

	if err := s.store.SaveScheduled(ctx, post, event); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.entitlements.InvalidateSnapshot(ctx, userID)
	s.logger.Info("post scheduled",
		"user_id", userID,
		"post_id", post.ID,
		"platform", post.Platform,
	)

	return post, nil
}

func (s *Service) List(
	ctx context.Context,
	userID string,
	page, pageSize int,
) ([]Post, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return s.repo.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
}

// Cancel marks a scheduled post canceled. The creation event stays: the
// window consumed the creation when it was accepted.
func (s *Service) Cancel(ctx context.Context, userID, postID string) error {
	return s.repo.Cancel(ctx, postID, userID)
}

func containsPlatform(
	platforms []entitlement.Platform,
	p entitlement.Platform,
) bool {
	for _, candidate := range platforms {
		if candidate == p {
			return true
		}
	}
	return false
}
