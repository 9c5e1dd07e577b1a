package domain

// Tier enumerates subscription tiers.
type Tier string

const (
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// TierLimits is the resolved constraint set for one tier.
type TierLimits struct {
	MaxDurationSeconds int
	AllowedProviders   map[string]struct{}
	MonthlyQuota       int
	// FlatRateCentsPerSecond prices a completed job when the provider does
	// not report a cost of its own.
	FlatRateCentsPerSecond int64
}

// AllowsProvider reports whether the tier may use the named provider.
func (l TierLimits) AllowsProvider(provider string) bool {
	_, ok := l.AllowedProviders[provider]
	return ok
}
