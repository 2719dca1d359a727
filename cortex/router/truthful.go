package router

import "math"

const truthfulEMARate = 0.15

// Capability is a declared or observed capability vector, keyed by
// dimension name (e.g. "latency_ms", "accuracy").
type Capability map[string]float64

type toolRecord struct {
	declared Capability
	observed Capability
	seen     bool
}

// TruthfulScorer tracks each tool's declared capabilities against its
// EMA-smoothed observed performance, penalizing score by how far declared
// drifts from observed (spec §4.6).
type TruthfulScorer struct {
	normalizer float64
	tools      map[string]*toolRecord
}

// NewTruthfulScorer constructs a TruthfulScorer. normalizer scales the
// declared/observed distance into a [0,1]-ish credibility penalty.
func NewTruthfulScorer(normalizer float64) *TruthfulScorer {
	return &TruthfulScorer{normalizer: normalizer, tools: make(map[string]*toolRecord)}
}

// Declare registers or replaces a tool's declared capability vector.
func (s *TruthfulScorer) Declare(tool string, declared Capability) {
	r := s.ensure(tool)
	r.declared = declared
}

func (s *TruthfulScorer) ensure(tool string) *toolRecord {
	r, ok := s.tools[tool]
	if !ok {
		r = &toolRecord{observed: Capability{}}
		s.tools[tool] = r
	}
	return r
}

// ObserveOutcome folds one actual-performance sample into the tool's
// observed capability EMA (alpha=0.15, spec §4.6).
func (s *TruthfulScorer) ObserveOutcome(tool string, actual Capability) {
	r := s.ensure(tool)
	if r.observed == nil {
		r.observed = Capability{}
	}
	for k, v := range actual {
		if !r.seen {
			r.observed[k] = v
			continue
		}
		r.observed[k] = r.observed[k] + truthfulEMARate*(v-r.observed[k])
	}
	r.seen = true
}

// Credibility computes 1 − ||declared − observed|| / normalizer, clamped to
// [0,1] (spec §4.6).
func (s *TruthfulScorer) Credibility(tool string) float64 {
	r, ok := s.tools[tool]
	if !ok {
		return 1
	}
	norm := s.normalizer
	if norm <= 0 {
		norm = 1
	}
	dist := euclideanDistance(r.declared, r.observed)
	cred := 1 - dist/norm
	if cred < 0 {
		return 0
	}
	if cred > 1 {
		return 1
	}
	return cred
}

// AdjustedScore scales raw by the tool's credibility (spec §4.6:
// adjusted = raw · credibility).
func (s *TruthfulScorer) AdjustedScore(tool string, raw float64) float64 {
	return raw * s.Credibility(tool)
}

func euclideanDistance(a, b Capability) float64 {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	var sumSq float64
	for k := range keys {
		d := a[k] - b[k]
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}
