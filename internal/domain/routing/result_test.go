package routing

import "testing"

func TestTierIsFallback(t *testing.T) {
	tests := []struct {
		tier Tier
		want bool
	}{
		{TierExact, false},
		{TierPartialIntent, false},
		{TierPartialCategory, false},
		{TierGeneric, true},
		{TierNone, true},
	}
	for _, tt := range tests {
		if got := tt.tier.IsFallback(); got != tt.want {
			t.Errorf("%s.IsFallback() = %v, want %v", tt.tier, got, tt.want)
		}
	}
}
