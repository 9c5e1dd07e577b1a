package tier

import (
	"server/internal/domain"
)

// Config is the static tier table injected at construction time. Keeping it a
// plain struct keeps quota numbers and duration caps independently testable.
type Config struct {
	Tiers map[domain.Tier]domain.TierLimits
}

// DefaultConfig returns the built-in tier table.
func DefaultConfig() Config {
	return Config{
		Tiers: map[domain.Tier]domain.TierLimits{
			domain.TierStarter: {
				MaxDurationSeconds:     10,
				AllowedProviders:       providerSet("minimax"),
				MonthlyQuota:           20,
				FlatRateCentsPerSecond: 4,
			},
			domain.TierPro: {
				MaxDurationSeconds:     60,
				AllowedProviders:       providerSet("minimax", "piapi"),
				MonthlyQuota:           150,
				FlatRateCentsPerSecond: 6,
			},
			domain.TierEnterprise: {
				MaxDurationSeconds:     120,
				AllowedProviders:       providerSet("minimax", "piapi", "replicate"),
				MonthlyQuota:           1000,
				FlatRateCentsPerSecond: 9,
			},
		},
	}
}

func providerSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Policy resolves tier limits and performs admission control. It is a pure
// lookup over the injected config; monthly usage is supplied by the caller so
// the policy itself never touches storage.
type Policy struct {
	cfg Config
}

func NewPolicy(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// Resolve returns the limits for the given tier.
func (p *Policy) Resolve(t domain.Tier) (domain.TierLimits, error) {
	limits, ok := p.cfg.Tiers[t]
	if !ok {
		return domain.TierLimits{}, domain.ErrUnknownTier
	}
	return limits, nil
}

// Admit decides whether the request may proceed. A denial means no job is
// ever created. usedThisMonth is the requester's job count in the current
// billing month.
func (p *Policy) Admit(t domain.Tier, req domain.GenerationRequest, usedThisMonth int) error {
	limits, err := p.Resolve(t)
	if err != nil {
		return err
	}
	if req.DurationSeconds > limits.MaxDurationSeconds {
		return domain.ErrDurationExceedsTier
	}
	if req.ProviderOverride != "" && !limits.AllowsProvider(req.ProviderOverride) {
		return domain.ErrProviderNotAllowed
	}
	if usedThisMonth >= limits.MonthlyQuota {
		return domain.ErrQuotaExhausted
	}
	return nil
}
