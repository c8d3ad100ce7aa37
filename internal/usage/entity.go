// AngelaMos | 2026
// entity.go

package usage

import (
	"time"
)

// CreationEvent records one accepted content creation. Events are
// append-only; quota decisions are made by counting them inside derived
// window ranges, never by mutating a stored counter.
type CreationEvent struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Platform  string    `db:"platform"`
	CreatedAt time.Time `db:"created_at"`
}

// Range is a time range for counting events. End inclusivity is explicit
// because the current period is closed on both ends while the previous
// period is half-open at its upper bound.
type Range struct {
	Start        time.Time
	End          time.Time
	EndInclusive bool
}

// Counts pairs the creation counts for a window and the period before it.
// The two underlying ranges are disjoint and contiguous.
type Counts struct {
	Current  int `json:"current"`
	Previous int `json:"previous"`
}
