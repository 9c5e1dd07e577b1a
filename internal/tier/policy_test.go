package tier

import (
	"errors"
	"testing"

	"server/internal/domain"
)

func TestResolveUnknownTier(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	if _, err := p.Resolve(domain.Tier("platinum")); !errors.Is(err, domain.ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
}

func TestAdmit(t *testing.T) {
	p := NewPolicy(DefaultConfig())

	cases := []struct {
		name    string
		tier    domain.Tier
		req     domain.GenerationRequest
		used    int
		wantErr error
	}{
		{
			name: "starter within limits",
			tier: domain.TierStarter,
			req:  domain.GenerationRequest{DurationSeconds: 8},
			used: 0,
		},
		{
			name:    "starter duration over cap",
			tier:    domain.TierStarter,
			req:     domain.GenerationRequest{DurationSeconds: 11},
			wantErr: domain.ErrDurationExceedsTier,
		},
		{
			name: "starter at exact cap",
			tier: domain.TierStarter,
			req:  domain.GenerationRequest{DurationSeconds: 10},
		},
		{
			name:    "starter override to disallowed provider",
			tier:    domain.TierStarter,
			req:     domain.GenerationRequest{DurationSeconds: 5, ProviderOverride: "replicate"},
			wantErr: domain.ErrProviderNotAllowed,
		},
		{
			name: "pro override to allowed provider",
			tier: domain.TierPro,
			req:  domain.GenerationRequest{DurationSeconds: 30, ProviderOverride: "piapi"},
		},
		{
			name:    "quota exhausted",
			tier:    domain.TierStarter,
			req:     domain.GenerationRequest{DurationSeconds: 5},
			used:    20,
			wantErr: domain.ErrQuotaExhausted,
		},
		{
			name:    "duration checked before quota",
			tier:    domain.TierStarter,
			req:     domain.GenerationRequest{DurationSeconds: 99},
			used:    20,
			wantErr: domain.ErrDurationExceedsTier,
		},
		{
			name:    "unknown tier",
			tier:    domain.Tier("gold"),
			req:     domain.GenerationRequest{DurationSeconds: 5},
			wantErr: domain.ErrUnknownTier,
		},
		{
			name: "enterprise long form",
			tier: domain.TierEnterprise,
			req:  domain.GenerationRequest{DurationSeconds: 120, ProviderOverride: "replicate"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.Admit(tc.tier, tc.req, tc.used)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}
