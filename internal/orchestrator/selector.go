package orchestrator

import (
	"server/internal/domain"
	video "server/internal/providers/video"
)

// Bracket maps a duration ceiling onto an ordered list of candidate adapter
// keys. MaxDurationSeconds of zero means unbounded; brackets are evaluated in
// order, so the unbounded bracket goes last.
type Bracket struct {
	MaxDurationSeconds int
	Candidates         []video.Key
}

// SelectorConfig is the duration-bracket table. It is configuration, not
// logic: adding a provider means adding a candidate entry, not touching the
// selection code.
type SelectorConfig struct {
	Brackets []Bracket
}

// DefaultSelectorConfig returns the built-in bracket table: short clips go to
// the cheap provider, mid-length to the 1.3B Wan model, long-form to the 14B
// model.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Brackets: []Bracket{
			{
				MaxDurationSeconds: 10,
				Candidates: []video.Key{
					{Provider: "minimax", Variant: "video-01"},
					{Provider: "piapi", Variant: "wan-1.3b"},
				},
			},
			{
				MaxDurationSeconds: 60,
				Candidates: []video.Key{
					{Provider: "piapi", Variant: "wan-1.3b"},
					{Provider: "replicate", Variant: "wan-14b"},
				},
			},
			{
				Candidates: []video.Key{
					{Provider: "piapi", Variant: "wan-14b"},
					{Provider: "replicate", Variant: "wan-14b"},
				},
			},
		},
	}
}

// Selector deterministically picks one adapter key for an admitted request.
// Identical inputs always yield the same key.
type Selector struct {
	cfg SelectorConfig
}

func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Select resolves the adapter key for the request under the given tier
// limits. An explicit override picks that provider (admission has already
// verified it is allowed); otherwise the duration bracket decides, taking the
// first candidate whose provider the tier allows.
func (s *Selector) Select(limits domain.TierLimits, req domain.GenerationRequest) (video.Key, error) {
	bracket := s.bracketFor(req.DurationSeconds)
	if bracket == nil {
		return video.Key{}, domain.ErrNoEligibleProvider
	}

	if req.ProviderOverride != "" {
		if key, ok := findProvider(bracket.Candidates, req.ProviderOverride); ok {
			return key, nil
		}
		// The override provider has no candidate in this duration bracket;
		// fall back to its first appearance anywhere in the table.
		for _, b := range s.cfg.Brackets {
			if key, ok := findProvider(b.Candidates, req.ProviderOverride); ok {
				return key, nil
			}
		}
		return video.Key{}, domain.ErrNoEligibleProvider
	}

	for _, key := range bracket.Candidates {
		if limits.AllowsProvider(key.Provider) {
			return key, nil
		}
	}
	return video.Key{}, domain.ErrNoEligibleProvider
}

func (s *Selector) bracketFor(duration int) *Bracket {
	for i := range s.cfg.Brackets {
		b := &s.cfg.Brackets[i]
		if b.MaxDurationSeconds == 0 || duration <= b.MaxDurationSeconds {
			return b
		}
	}
	return nil
}

func findProvider(candidates []video.Key, provider string) (video.Key, bool) {
	for _, key := range candidates {
		if key.Provider == provider {
			return key, true
		}
	}
	return video.Key{}, false
}
