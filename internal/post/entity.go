// AngelaMos | 2026
// entity.go

package post

import (
	"fmt"
	"time"
)

const (
	StatusScheduled = "scheduled"
	StatusCanceled  = "canceled"
)

// Post is a scheduled piece of content. This service only accepts and
// stores it; delivery to the destination network happens elsewhere.
type Post struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Platform    string    `db:"platform"`
	Content     string    `db:"content"`
	ScheduledAt time.Time `db:"scheduled_at"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// GateKind identifies why an intake was refused. The string values are part
// of the API contract and must stay stable.
type GateKind string

const (
	GateWindowClosed       GateKind = "window_closed"
	GatePlatformNotAllowed GateKind = "platform_not_allowed"
	GateQuotaExceeded      GateKind = "quota_exceeded"
)

// GateError is a policy refusal from the entitlement gate, not a failure.
// Checks run in a fixed order: window, platform, quota.
type GateError struct {
	Kind GateKind
}

func (e *GateError) Error() string {
	return fmt.Sprintf("post rejected: %s", e.Kind)
}
