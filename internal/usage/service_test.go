// AngelaMos | 2026
// service_test.go

package usage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow-api/internal/core"
)

type fakeRepo struct {
	events   []CreationEvent
	ranges   []Range
	counts   []int
	failWith error
}

func (f *fakeRepo) Insert(_ context.Context, event *CreationEvent) error {
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeRepo) CountInRange(
	_ context.Context,
	_ string,
	r Range,
) (int, error) {
	f.ranges = append(f.ranges, r)
	if f.failWith != nil {
		return 0, f.failWith
	}
	if len(f.counts) > 0 {
		count := f.counts[0]
		f.counts = f.counts[1:]
		return count, nil
	}
	return 0, nil
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordNormalizesToUTC(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	loc := time.FixedZone("UTC-7", -7*3600)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, loc)

	err := svc.Record(context.Background(), "sub-1", "mastodon", at)
	require.NoError(t, err)

	require.Len(t, repo.events, 1)
	event := repo.events[0]
	assert.Equal(t, time.UTC, event.CreatedAt.Location())
	assert.True(t, event.CreatedAt.Equal(at))
	assert.NotEmpty(t, event.ID)
}

func TestCountInRangeRejectsInvertedRange(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.CountInRange(context.Background(), "sub-1", Range{
		Start: start,
		End:   start.Add(-time.Hour),
	})

	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCountInRangeEmptyRangeIsZero(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	count, err := svc.CountInRange(context.Background(), "sub-1", Range{
		Start: start,
		End:   start.Add(24 * time.Hour),
	})

	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountPropagatesStoreUnavailable(t *testing.T) {
	repo := &fakeRepo{
		failWith: fmt.Errorf(
			"count creation events: %w: connection refused",
			core.ErrStoreUnavailable,
		),
	}
	svc := newTestService(repo)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	_, err := svc.CurrentAndPrevious(context.Background(), "sub-1", start, end)

	require.Error(t, err)
	assert.True(t, core.IsStoreUnavailable(err))
}

func TestCurrentAndPreviousRangesAreDisjoint(t *testing.T) {
	repo := &fakeRepo{counts: []int{5, 2}}
	svc := newTestService(repo)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	counts, err := svc.CurrentAndPrevious(
		context.Background(),
		"sub-1",
		start,
		end,
	)
	require.NoError(t, err)

	assert.Equal(t, Counts{Current: 5, Previous: 2}, counts)

	require.Len(t, repo.ranges, 2)
	current, previous := repo.ranges[0], repo.ranges[1]

	// Current period is closed on both ends, previous is half-open at its
	// upper bound; they share the start boundary exclusively.
	assert.True(t, current.EndInclusive)
	assert.False(t, previous.EndInclusive)
	assert.Equal(t, current.Start, previous.End)
	assert.Equal(t, start.Add(-30*24*time.Hour), previous.Start)
	assert.Equal(t, end.Sub(start), previous.End.Sub(previous.Start))
}
