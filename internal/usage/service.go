// AngelaMos | 2026
// service.go

package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow-api/internal/core"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Record appends a creation event for the subscriber. The timestamp is
// normalized to UTC before storage so range queries never straddle a zone
// offset.
func (s *Service) Record(
	ctx context.Context,
	userID, platform string,
	at time.Time,
) error {
	event := &CreationEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Platform:  platform,
		CreatedAt: at.UTC(),
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("record creation: %w", err)
	}

	s.logger.DebugContext(ctx, "creation event recorded",
		slog.String("user_id", userID),
		slog.String("platform", platform),
	)

	return nil
}

// CountInRange counts events for a subscriber inside an arbitrary range.
func (s *Service) CountInRange(
	ctx context.Context,
	userID string,
	r Range,
) (int, error) {
	if r.End.Before(r.Start) {
		return 0, fmt.Errorf("%w: range end before start", core.ErrInvalidInput)
	}

	return s.repo.CountInRange(ctx, userID, r)
}

// CurrentAndPrevious counts events in the closed range [start, end] and in
// the half-open period of the same length immediately before it. The two
// ranges share the start boundary exclusively, so no event is counted twice.
func (s *Service) CurrentAndPrevious(
	ctx context.Context,
	userID string,
	start, end time.Time,
) (Counts, error) {
	current, err := s.CountInRange(ctx, userID, Range{
		Start:        start,
		End:          end,
		EndInclusive: true,
	})
	if err != nil {
		return Counts{}, err
	}

	length := end.Sub(start)
	previous, err := s.CountInRange(ctx, userID, Range{
		Start: start.Add(-length),
		End:   start,
	})
	if err != nil {
		return Counts{}, err
	}

	return Counts{Current: current, Previous: previous}, nil
}
