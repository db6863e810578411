package router

// ModelSpec describes one routable model: which provider family serves it,
// what it costs, and how strong it is per capability.
type ModelSpec struct {
	Name         string
	Family       string // provider family: "anthropic" or "openai"
	Tier         string // "quality" or "speed"
	Capabilities map[string]float64
	CostPer1M    float64 // USD per 1M tokens
}

// Capability names accepted by SelectModel.
const (
	CapReasoning  = "reasoning"
	CapCreativity = "creativity"
	CapAnalysis   = "analysis"
	CapCoding     = "coding"
	CapLanguage   = "language"
)

// Tier names.
const (
	TierQuality = "quality"
	TierSpeed   = "speed"
)

// catalog is the fixed model catalog, in priority order. Selection scans this
// slice front to back, so equal scores resolve to the earlier entry and the
// choice is fully deterministic.
var catalog = []ModelSpec{
	{
		Name:   "claude-3-5-sonnet-20241022",
		Family: "anthropic",
		Tier:   TierQuality,
		Capabilities: map[string]float64{
			CapReasoning:  0.95,
			CapCreativity: 0.98,
			CapAnalysis:   0.93,
			CapCoding:     0.96,
			CapLanguage:   0.97,
		},
		CostPer1M: 15.0,
	},
	{
		Name:   "gpt-4o",
		Family: "openai",
		Tier:   TierQuality,
		Capabilities: map[string]float64{
			CapReasoning:  0.94,
			CapCreativity: 0.92,
			CapAnalysis:   0.96,
			CapCoding:     0.95,
			CapLanguage:   0.94,
		},
		CostPer1M: 10.0,
	},
	{
		Name:   "claude-3-5-haiku-20241022",
		Family: "anthropic",
		Tier:   TierSpeed,
		Capabilities: map[string]float64{
			CapReasoning:  0.88,
			CapCreativity: 0.90,
			CapAnalysis:   0.87,
			CapCoding:     0.89,
			CapLanguage:   0.91,
		},
		CostPer1M: 1.0,
	},
	{
		Name:   "gpt-4o-mini",
		Family: "openai",
		Tier:   TierSpeed,
		Capabilities: map[string]float64{
			CapReasoning:  0.85,
			CapCreativity: 0.86,
			CapAnalysis:   0.88,
			CapCoding:     0.87,
			CapLanguage:   0.89,
		},
		CostPer1M: 0.6,
	},
}

// Catalog returns the full model catalog in priority order.
func Catalog() []ModelSpec {
	out := make([]ModelSpec, len(catalog))
	copy(out, catalog)
	return out
}

// Spec returns the catalog entry for a model name.
func Spec(name string) (ModelSpec, bool) {
	for _, m := range catalog {
		if m.Name == name {
			return m, true
		}
	}
	return ModelSpec{}, false
}

// SelectModel picks the best model for the requested capabilities within a
// tier. The score is the mean of the requested capability values; ties break
// to catalog order. Empty capabilities or an unknown tier fall back to def.
func SelectModel(capabilities []string, tier, def string) string {
	if len(capabilities) == 0 {
		return def
	}
	if tier != TierQuality && tier != TierSpeed {
		tier = TierQuality
	}

	best := ""
	bestScore := -1.0
	for _, m := range catalog {
		if m.Tier != tier {
			continue
		}
		var sum float64
		for _, c := range capabilities {
			sum += m.Capabilities[c]
		}
		score := sum / float64(len(capabilities))
		if score > bestScore {
			bestScore = score
			best = m.Name
		}
	}
	if best == "" {
		return def
	}
	return best
}

// FallbackFor returns the fallback model for a failed call: the same tier in
// the other provider family, so a provider-wide outage is routed around.
func FallbackFor(model string) string {
	spec, ok := Spec(model)
	if !ok {
		return ""
	}
	for _, m := range catalog {
		if m.Tier == spec.Tier && m.Family != spec.Family {
			return m.Name
		}
	}
	return ""
}

// CostUSD computes the dollar cost for a call against a model.
func CostUSD(model string, totalTokens int) float64 {
	spec, ok := Spec(model)
	if !ok {
		return 0
	}
	return spec.CostPer1M * float64(totalTokens) / 1_000_000
}
