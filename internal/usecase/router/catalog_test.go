package router

import "testing"

func TestSelectModelDeterministic(t *testing.T) {
	caps := []string{CapReasoning, CapAnalysis}
	first := SelectModel(caps, TierQuality, "def")
	for i := 0; i < 50; i++ {
		if got := SelectModel(caps, TierQuality, "def"); got != first {
			t.Fatalf("selection not deterministic: %q vs %q", got, first)
		}
	}
}

func TestSelectModelQualityTier(t *testing.T) {
	// Analysis alone favors gpt-4o (0.96 vs sonnet's 0.93).
	if got := SelectModel([]string{CapAnalysis}, TierQuality, "def"); got != "gpt-4o" {
		t.Errorf("analysis pick = %q, want gpt-4o", got)
	}
	// Creativity alone favors sonnet (0.98).
	if got := SelectModel([]string{CapCreativity}, TierQuality, "def"); got != "claude-3-5-sonnet-20241022" {
		t.Errorf("creativity pick = %q, want claude-3-5-sonnet-20241022", got)
	}
}

func TestSelectModelSpeedTier(t *testing.T) {
	got := SelectModel([]string{CapLanguage}, TierSpeed, "def")
	if got != "claude-3-5-haiku-20241022" {
		t.Errorf("speed pick = %q, want claude-3-5-haiku-20241022", got)
	}
}

func TestSelectModelEmptyCapabilitiesUsesDefault(t *testing.T) {
	if got := SelectModel(nil, TierQuality, "claude-3-5-sonnet-20241022"); got != "claude-3-5-sonnet-20241022" {
		t.Errorf("got %q, want default", got)
	}
}

func TestSelectModelUnknownTierDefaultsToQuality(t *testing.T) {
	got := SelectModel([]string{CapCreativity}, "turbo", "def")
	if got != "claude-3-5-sonnet-20241022" {
		t.Errorf("got %q, want claude-3-5-sonnet-20241022", got)
	}
}

func TestFallbackSwapsProviderFamily(t *testing.T) {
	tests := map[string]string{
		"claude-3-5-sonnet-20241022": "gpt-4o",
		"gpt-4o":          "claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022":  "gpt-4o-mini",
		"gpt-4o-mini":     "claude-3-5-haiku-20241022",
	}
	for model, want := range tests {
		if got := FallbackFor(model); got != want {
			t.Errorf("FallbackFor(%q) = %q, want %q", model, got, want)
		}
	}
	if got := FallbackFor("unknown"); got != "" {
		t.Errorf("FallbackFor(unknown) = %q, want empty", got)
	}
}

func TestCostUSD(t *testing.T) {
	// 1M tokens of sonnet costs exactly the per-1M price.
	if got := CostUSD("claude-3-5-sonnet-20241022", 1_000_000); got != 15.0 {
		t.Errorf("sonnet cost = %v, want 15.0", got)
	}
	if got := CostUSD("gpt-4o-mini", 500_000); got != 0.3 {
		t.Errorf("mini cost = %v, want 0.3", got)
	}
	if got := CostUSD("unknown", 1000); got != 0 {
		t.Errorf("unknown model cost = %v, want 0", got)
	}
}
