// AngelaMos | 2026
// dto.go

package entitlement

import (
	"time"

	"github.com/postflowhq/postflow-api/internal/usage"
)

// Snapshot is the combined entitlement view a client needs to render its
// composer: tier, subscription state, the derived creation window, usage
// counts for the window and the period before it, and the platforms the
// tier may post to.
//
// PostQuota is the per-window creation allowance for the tier; -1 means
// unlimited.
type Snapshot struct {
	UserID     string         `json:"user_id"`
	Tier       string         `json:"tier"`
	Subscribed bool           `json:"subscribed"`
	Window     CreationWindow `json:"window"`
	Usage      usage.Counts   `json:"usage"`
	PostQuota  int            `json:"post_quota"`
	Platforms  []Platform     `json:"platforms"`
	ComputedAt time.Time      `json:"computed_at"`
}

// ExtendWindowResponse reports whether an admin window extension actually
// changed anything. Extended is false for free-tier or lapsed subscribers,
// which is an answer, not an error.
type ExtendWindowResponse struct {
	Extended bool           `json:"extended"`
	Window   CreationWindow `json:"window"`
}
