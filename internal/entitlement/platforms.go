// AngelaMos | 2026
// platforms.go

package entitlement

import (
	"slices"

	"github.com/postflowhq/postflow-api/internal/config"
	"github.com/postflowhq/postflow-api/internal/subscriber"
)

type Platform string

const (
	PlatformMastodon  Platform = "mastodon"
	PlatformTelegram  Platform = "telegram"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

// Gate maps a tier to the destination platforms it may post to. Platforms
// are assigned per tier in config and accumulate up the hierarchy: a tier
// always receives everything assigned to the tiers below it, so
// allowed(pro) ⊇ allowed(starter) ⊇ allowed(free) by construction.
type Gate struct {
	allowed map[string][]Platform
}

func NewGate(cfg config.BillingConfig) *Gate {
	tiers := []string{
		subscriber.TierFree,
		subscriber.TierStarter,
		subscriber.TierPro,
	}

	allowed := make(map[string][]Platform, len(tiers))
	var acc []Platform
	for _, tier := range tiers {
		for _, name := range cfg.TierPlatforms[tier] {
			p := Platform(name)
			if !slices.Contains(acc, p) {
				acc = append(acc, p)
			}
		}
		allowed[tier] = slices.Clone(acc)
	}

	return &Gate{allowed: allowed}
}

// Allowed returns the platform set for a tier. Unknown tiers get the free
// set, the same defensive default the quota side uses.
func (g *Gate) Allowed(tier string) []Platform {
	if platforms, ok := g.allowed[tier]; ok {
		return slices.Clone(platforms)
	}
	return slices.Clone(g.allowed[subscriber.TierFree])
}

func (g *Gate) IsAllowed(tier string, platform Platform) bool {
	return slices.Contains(g.Allowed(tier), platform)
}
