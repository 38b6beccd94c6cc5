package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/crateintel/pkg/errors"
	"github.com/matzehuels/crateintel/pkg/intel"
)

// Default entitlements for newly issued keys, by tier.
var tierDefaults = map[Tier]struct {
	rateLimit    int
	monthlyQuota int64
}{
	TierFree:       {rateLimit: 10, monthlyQuota: 500},
	TierPro:        {rateLimit: 60, monthlyQuota: 10_000},
	TierEnterprise: {rateLimit: 300, monthlyQuota: 100_000},
}

// Service authenticates callers and enforces their entitlements. It is
// constructed once at process start and injected into request handlers.
type Service struct {
	keys    KeyStore
	limiter Limiter
}

func NewService(keys KeyStore, limiter Limiter) *Service {
	if limiter == nil {
		limiter = NewMemoryLimiter()
	}
	return &Service{keys: keys, limiter: limiter}
}

// Authenticate resolves a raw key string to its record. Missing,
// unknown, and inactive keys are unauthorized; a known key past its
// expiry gets the distinct expired code.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*APIKey, error) {
	if rawKey == "" {
		return nil, errors.New(errors.ErrCodeUnauthorized, "missing API key")
	}
	rec, ok, err := s.keys.Get(ctx, rawKey)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "key lookup failed")
	}
	if !ok {
		return nil, errors.New(errors.ErrCodeUnauthorized, "invalid API key")
	}
	if !rec.Active {
		return nil, errors.New(errors.ErrCodeUnauthorized, "API key is inactive")
	}
	if rec.Expired() {
		return nil, errors.New(errors.ErrCodeKeyExpired, "API key has expired")
	}
	return rec, nil
}

// CheckAndConsume enforces the monthly quota and then the per-minute
// window, consuming one slot on success. Quota is checked first and is
// independent of per-minute state. The returned Decision carries window
// state for response headers even when the request is rejected.
func (s *Service) CheckAndConsume(ctx context.Context, key *APIKey) (Decision, error) {
	if key.MonthlyQuota > 0 && key.Usage >= key.MonthlyQuota {
		// No window slot is consumed, but headers still need real
		// limit and reset values.
		rejected := Decision{Limit: key.RateLimit, Reset: nextWindow(time.Now())}
		return rejected, errors.New(errors.ErrCodeQuotaExceeded,
			"monthly quota of %d requests exhausted", key.MonthlyQuota)
	}

	decision, err := s.limiter.Allow(ctx, key.Key, key.RateLimit)
	if err != nil {
		return Decision{}, errors.Wrap(errors.ErrCodeInternal, err, "rate limiter unavailable")
	}
	if !decision.Allowed {
		return decision, &errors.RateLimitError{
			Limit: decision.Limit,
			Used:  decision.Used,
			Reset: decision.Reset,
		}
	}
	return decision, nil
}

// CheckDepth gates an extraction depth against the caller's tier.
func (s *Service) CheckDepth(key *APIKey, depth intel.DepthTier) error {
	if key.Tier.CanAccess(depth) {
		return nil
	}
	return &errors.TierError{
		Required: string(RequiredTier(depth)),
		Message:  fmt.Sprintf("depth %q is not available on the %s tier", depth, key.Tier),
	}
}

// CheckBulk gates a batch size against the caller's tier.
func (s *Service) CheckBulk(key *APIKey, n int) error {
	if max := key.Tier.MaxBulk(); n > max {
		return &errors.TierError{
			Required: string(TierEnterprise),
			Message:  fmt.Sprintf("bulk request of %d crates exceeds the %s tier limit of %d", n, key.Tier, max),
		}
	}
	return nil
}

// IssueKey creates and persists a key with tier-default entitlements.
// A zero ttl issues a non-expiring key.
func (s *Service) IssueKey(ctx context.Context, callerID string, tier Tier, ttl time.Duration) (*APIKey, error) {
	defaults, ok := tierDefaults[tier]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown tier %q", tier)
	}
	rec := &APIKey{
		Key:          "ci_" + uuid.NewString(),
		CallerID:     callerID,
		Tier:         tier,
		RateLimit:    defaults.rateLimit,
		MonthlyQuota: defaults.monthlyQuota,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl)
	}
	if err := s.keys.Put(ctx, rec); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "key persist failed")
	}
	return rec, nil
}

// Keys exposes the underlying store for usage accounting and the CLI.
func (s *Service) Keys() KeyStore { return s.keys }
