// AngelaMos | 2026
// window.go

package entitlement

import (
	"time"

	"github.com/postflowhq/postflow-api/internal/subscriber"
)

// CreationWindow is the rolling creation period derived from a subscriber
// record. It is never stored; every read recomputes it from
// tier_effective_at and the caller-supplied clock, so it cannot go stale.
type CreationWindow struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Open          bool      `json:"open"`
	DaysRemaining int       `json:"days_remaining"`
}

// ComputeWindow derives the creation window for a subscriber at the given
// instant. All arithmetic is in UTC so the window length is exactly
// windowDays*24h regardless of daylight-saving transitions.
//
// The window exists only for an active paid tier. A missing anchor, an
// anchor in the future, a lapsed grant, or the free tier all yield a
// closed window rather than an error: malformed upstream data must not
// take the read path down.
//
// The end boundary is inclusive (now == end is still open) and
// DaysRemaining rounds up, so a subscriber inside the window never sees
// "0 days left".
func ComputeWindow(
	sub *subscriber.Subscriber,
	now time.Time,
	windowDays int,
) CreationWindow {
	if sub == nil || !sub.IsPaidTier() || !sub.ActiveAt(now) {
		return CreationWindow{}
	}

	anchor := sub.TierEffectiveAt
	if anchor == nil || anchor.After(now) {
		return CreationWindow{}
	}

	start := anchor.UTC()
	end := start.Add(time.Duration(windowDays) * 24 * time.Hour)
	now = now.UTC()

	window := CreationWindow{
		Start: start,
		End:   end,
		Open:  !now.After(end),
	}

	if remaining := end.Sub(now); remaining > 0 {
		window.DaysRemaining = int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
	}

	return window
}

// PreviousPeriod returns the accounting period immediately before the
// window: [start-windowDays*24h, start). Together with [start, end] the two
// ranges are disjoint and contiguous.
func (w CreationWindow) PreviousPeriod() (time.Time, time.Time) {
	length := w.End.Sub(w.Start)
	return w.Start.Add(-length), w.Start
}
