package color

import "math"

// FilterConfig holds the thresholds of the similarity gate. MaxHueDiff is in
// radians.
type FilterConfig struct {
	SimilarityThreshold float64
	MaxHueDiff          float64
	NeutralChroma       float64
}

// DefaultFilterConfig returns thresholds tuned for dominant-color search.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		SimilarityThreshold: 0.18,
		MaxHueDiff:          35 * math.Pi / 180,
		NeutralChroma:       0.04,
	}
}

// Predicate decides whether a stored color is similar to Target.
type Predicate struct {
	Target LCH
	Config FilterConfig
}

// NewPredicate builds a predicate for target.
func NewPredicate(target LCH, cfg FilterConfig) Predicate {
	return Predicate{Target: target, Config: cfg}
}

// Match reports whether candidate passes both the hue gate and the distance
// threshold. Near-neutral pairs skip the hue gate.
func (p Predicate) Match(candidate LCH) bool {
	if isNaN(candidate) || isNaN(p.Target) {
		return false
	}
	neutral := p.neutral(candidate)
	if !neutral && hueDiff(p.Target.H, candidate.H) > p.Config.MaxHueDiff {
		return false
	}
	return p.distance(candidate, neutral) <= p.Config.SimilarityThreshold
}

// Distance is the perceptual distance used by Match. It is symmetric in
// target and candidate.
func (p Predicate) Distance(candidate LCH) float64 {
	return p.distance(candidate, p.neutral(candidate))
}

func (p Predicate) neutral(candidate LCH) bool {
	return (p.Target.C+candidate.C)/2 < p.Config.NeutralChroma
}

func (p Predicate) distance(candidate LCH, neutral bool) float64 {
	dL := p.Target.L - candidate.L
	dC := p.Target.C - candidate.C
	var chord float64
	if !neutral {
		chord = 2 * math.Sqrt(p.Target.C*candidate.C) * math.Sin(hueDiff(p.Target.H, candidate.H)/2)
	}
	return math.Sqrt(dL*dL + dC*dC + chord*chord)
}

// hueDiff is the smallest angle between two hues, in [0, π].
func hueDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

func isNaN(c LCH) bool {
	return math.IsNaN(c.L) || math.IsNaN(c.C) || math.IsNaN(c.H)
}
