// Package auth controls access to the extraction pipeline: API key
// authentication, tier-gated depth entitlements, sliding-window rate
// limiting, and monthly quotas.
package auth

import (
	"time"

	"github.com/matzehuels/crateintel/pkg/intel"
)

// Tier is a caller's subscription level. Tiers are ordered and gate
// both extraction depth and bulk request size.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Level returns the tier's position in the ordering (free=0, pro=1,
// enterprise=2). Unknown tiers map to -1.
func (t Tier) Level() int {
	switch t {
	case TierFree:
		return 0
	case TierPro:
		return 1
	case TierEnterprise:
		return 2
	}
	return -1
}

// CanAccess reports whether the tier may request the given depth. The
// gate is the ordering invariant: tier level >= depth level.
func (t Tier) CanAccess(depth intel.DepthTier) bool {
	return t.Level() >= depth.Level()
}

// MaxBulk returns the tier's batch-size ceiling.
func (t Tier) MaxBulk() int {
	switch t {
	case TierPro:
		return 10
	case TierEnterprise:
		return 25
	default:
		return 3
	}
}

// RequiredTier names the minimum tier entitled to a depth. Used in
// entitlement errors so the caller knows what would unlock the request.
func RequiredTier(depth intel.DepthTier) Tier {
	switch depth {
	case intel.DepthDeep:
		return TierEnterprise
	case intel.DepthFull:
		return TierPro
	default:
		return TierFree
	}
}

// APIKey is a caller's credential record. Usage is the cumulative
// billed-call counter for the current monthly period.
type APIKey struct {
	Key          string    `json:"key" bson:"key"`
	CallerID     string    `json:"caller_id" bson:"caller_id"`
	Tier         Tier      `json:"tier" bson:"tier"`
	RateLimit    int       `json:"rate_limit" bson:"rate_limit"`
	MonthlyQuota int64     `json:"monthly_quota" bson:"monthly_quota"`
	Usage        int64     `json:"usage" bson:"usage"`
	Active       bool      `json:"active" bson:"active"`
	ExpiresAt    time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// Expired reports whether the key is past its expiry. A zero ExpiresAt
// means the key never expires.
func (k *APIKey) Expired() bool {
	return !k.ExpiresAt.IsZero() && k.ExpiresAt.Before(time.Now())
}
