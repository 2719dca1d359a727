// Package weights implements the Weight Engine (spec §4.1): behavioral
// weights with bounded-EMA plasticity, and tool/model preference weights
// with a Beta-conjugate posterior, both subject to four-tier feedback and
// runtime overrides.
package weights

import (
	"math"
	"sync"
	"time"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
	"github.com/QuestoM/cortex-docs-sub005/cortex/logger"
)

// Tier identifies one of the four feedback tiers from spec §4.1.
type Tier int

const (
	Tier1Direct Tier = iota
	Tier2UserInsight
	Tier3Enterprise
	Tier4Global
)

// Outcome is the signed result of an observation used to update a
// preference weight: success increments alpha, failure increments beta.
type Outcome bool

const (
	Success Outcome = true
	Failure Outcome = false
)

// BehavioralWeight is a scalar in [-1,1] updated by bounded EMA (spec §3).
type BehavioralWeight struct {
	Name         string
	Value        float64
	LearningRate float64
	LastUpdate   time.Time
}

// PreferenceWeight is a Beta-conjugate posterior over a tool or model (spec
// §3). PosteriorMean recomputes alpha/(alpha+beta) on demand rather than
// caching it, so it can never drift out of sync with Alpha/Beta.
type PreferenceWeight struct {
	EntityID cortex.EntityId
	Alpha    float64
	Beta     float64
	Uses     int
	LastUsed time.Time
}

// PosteriorMean is the Beta posterior mean alpha/(alpha+beta).
func (p PreferenceWeight) PosteriorMean() float64 {
	if p.Alpha+p.Beta == 0 {
		return 0.5
	}
	return p.Alpha / (p.Alpha + p.Beta)
}

// Snapshot is an immutable deep copy of every weight the Engine holds (spec
// §3 WeightSnapshot).
type Snapshot struct {
	Behavioral map[string]float64
	Tools      map[cortex.EntityId]float64
	Models     map[cortex.EntityId]float64
	TakenAt    time.Time
}

type override struct {
	value     float64
	expiresAt time.Time // zero means no expiry
}

// Engine owns one session's behavioral and preference weight maps, an
// override layer, and the tier/learning-rate configuration that governs
// feedback.
type Engine struct {
	mu sync.RWMutex

	cfg    config.FeedbackConfig
	decay  config.PlasticityConfig
	logger logger.Logger

	behavioral map[string]*BehavioralWeight
	tools      map[cortex.EntityId]*PreferenceWeight
	models     map[cortex.EntityId]*PreferenceWeight
	overrides  map[string]override
}

// New constructs an Engine. A nil logger defaults to logger.NoOp.
func New(feedback config.FeedbackConfig, plasticity config.PlasticityConfig, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NoOp{}
	}
	return &Engine{
		cfg:        feedback,
		decay:      plasticity,
		logger:     log,
		behavioral: make(map[string]*BehavioralWeight),
		tools:      make(map[cortex.EntityId]*PreferenceWeight),
		models:     make(map[cortex.EntityId]*PreferenceWeight),
		overrides:  make(map[string]override),
	}
}

// tierEnabled reports whether tier is turned on by configuration.
func (e *Engine) tierEnabled(tier Tier) bool {
	switch tier {
	case Tier1Direct:
		return e.cfg.Tier1Direct
	case Tier2UserInsight:
		return e.cfg.Tier2UserInsight
	case Tier3Enterprise:
		return e.cfg.Tier3Enterprise
	case Tier4Global:
		return e.cfg.Tier4Global
	default:
		return false
	}
}

// tierK returns k_tier, the effective-sample weight used in the Beta update.
func (e *Engine) tierK(tier Tier) float64 {
	switch tier {
	case Tier1Direct:
		return e.cfg.Tier1K
	case Tier2UserInsight:
		return e.cfg.Tier2K
	case Tier3Enterprise:
		return e.cfg.Tier3K
	case Tier4Global:
		return e.cfg.Tier4K
	default:
		return 0
	}
}

// GetBehavioral returns the effective value of a behavioral weight (override
// if present, else the learned value), returning 0 for unseen names without
// registering them.
func (e *Engine) GetBehavioral(name string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effectiveBehavioral(name)
}

func (e *Engine) effectiveBehavioral(name string) float64 {
	if ov, ok := e.overrides["behavioral:"+name]; ok && !expired(ov) {
		return ov.value
	}
	w, ok := e.behavioral[name]
	if !ok {
		return 0
	}
	return w.Value
}

// ToolPreference returns the effective posterior mean for a tool,
// auto-registering it with a Beta(1,1) prior on first use (spec §4.1
// "unknown entity auto-registers with prior (1,1)").
func (e *Engine) ToolPreference(id cortex.EntityId) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effectivePreference(e.tools, "tool", id)
}

// ModelPreference returns the effective posterior mean for a model.
func (e *Engine) ModelPreference(id cortex.EntityId) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effectivePreference(e.models, "model", id)
}

func (e *Engine) effectivePreference(store map[cortex.EntityId]*PreferenceWeight, kind string, id cortex.EntityId) float64 {
	w := e.autoRegister(store, id)
	return e.overrideOrMean(kind, id, w)
}

// overrideOrMean applies the override-over-learned rule to an
// already-resolved weight, without registering unseen entities. GetSnapshot
// uses this directly so a snapshot read never mutates the engine's entity
// set, while effectivePreference also auto-registers for its own callers.
func (e *Engine) overrideOrMean(kind string, id cortex.EntityId, w *PreferenceWeight) float64 {
	if ov, ok := e.overrides[kind+":"+string(id)]; ok && !expired(ov) {
		return ov.value
	}
	return w.PosteriorMean()
}

func (e *Engine) autoRegister(store map[cortex.EntityId]*PreferenceWeight, id cortex.EntityId) *PreferenceWeight {
	if w, ok := store[id]; ok {
		return w
	}
	w := &PreferenceWeight{EntityID: id, Alpha: 1, Beta: 1}
	store[id] = w
	return w
}

// ApplyFeedback updates the named entity's weight per spec §4.1's Beta
// conjugate rule (for tool/model kinds) or bounded EMA rule (for
// "behavioral"). A disabled tier is a documented no-op, not an error.
func (e *Engine) ApplyFeedback(kind string, id string, outcome Outcome, tier Tier) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.tierEnabled(tier) {
		e.logger.Debug("feedback tier disabled, no-op", map[string]interface{}{
			"kind": kind, "id": id, "tier": int(tier),
		})
		return nil
	}

	switch kind {
	case "behavioral":
		return e.applyBehavioralFeedback(id, outcome, tier)
	case "tool":
		e.applyPreferenceFeedback(e.tools, cortex.EntityId(id), outcome, tier)
		return nil
	case "model":
		e.applyPreferenceFeedback(e.models, cortex.EntityId(id), outcome, tier)
		return nil
	default:
		return cortex.NewFault("weights.ApplyFeedback", cortex.InvalidArgument, id, "unknown weight kind: "+kind)
	}
}

func (e *Engine) applyBehavioralFeedback(name string, outcome Outcome, tier Tier) error {
	w, ok := e.behavioral[name]
	if !ok {
		w = &BehavioralWeight{Name: name, LearningRate: e.cfg.BehavioralLR}
		e.behavioral[name] = w
	}
	target := -1.0
	if outcome == Success {
		target = 1.0
	}
	lr := w.LearningRate * tierScale(tier)
	w.Value = cortex.ClampWeight(cortex.EMA(w.Value, target, lr))
	w.LastUpdate = time.Now()
	return nil
}

// tierScale lets higher tiers apply a stronger pull on behavioral weights
// without a separate learning-rate table; it mirrors the Beta update's
// k_tier scaling so both weight families respond to tier the same way.
func tierScale(tier Tier) float64 {
	switch tier {
	case Tier1Direct:
		return 1.0
	case Tier2UserInsight:
		return 1.5
	case Tier3Enterprise:
		return 2.0
	case Tier4Global:
		return 0.5
	default:
		return 1.0
	}
}

func (e *Engine) applyPreferenceFeedback(store map[cortex.EntityId]*PreferenceWeight, id cortex.EntityId, outcome Outcome, tier Tier) {
	w := e.autoRegister(store, id)
	k := e.tierK(tier)
	if outcome == Success {
		w.Alpha += k
	} else {
		w.Beta += k
	}
	w.Uses++
	w.LastUsed = time.Now()
}

// Decay applies the Beta-prior decay rule from spec §4.1 to every
// preference weight: alpha <- 1 + (alpha-1)*phi, beta <- 1 + (beta-1)*phi.
// Behavioral weights are unaffected, per spec.
func (e *Engine) Decay(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	phi := decayFactorForInterval(e.decay.DecayFactor, e.decay.EdgeHalfLife, dt)
	for _, w := range e.tools {
		w.Alpha = 1 + (w.Alpha-1)*phi
		w.Beta = 1 + (w.Beta-1)*phi
	}
	for _, w := range e.models {
		w.Alpha = 1 + (w.Alpha-1)*phi
		w.Beta = 1 + (w.Beta-1)*phi
	}
}

// decayFactorForInterval turns the configured edge_halflife into a per-call
// phi: a Beta prior retains half its pre-decay pull toward (1,1) after
// halfLife turns elapse. decayFactor is a floor multiplier so an operator
// can damp decay further without retuning the half-life. dt is the number
// of turns elapsed since the last Decay call.
func decayFactorForInterval(decayFactor, halfLife, dt float64) float64 {
	if dt <= 0 {
		return 1
	}
	if halfLife <= 0 {
		return math.Pow(decayFactor, dt)
	}
	return math.Pow(0.5, dt/halfLife) * decayFactor
}

// Override installs a runtime override for a behavioral weight, tool, or
// model, valid until ttl elapses (zero ttl means no expiry). Effective
// reads prefer the override over the learned value (spec §4.1).
func (e *Engine) Override(kind, id string, value float64, ttl time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := kind + ":" + id
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	switch kind {
	case "behavioral":
		value = cortex.ClampWeight(value)
	case "tool", "model":
		value = cortex.Clamp01(value)
	default:
		return cortex.NewFault("weights.Override", cortex.InvalidArgument, id, "unknown weight kind: "+kind)
	}
	e.overrides[key] = override{value: value, expiresAt: expiresAt}
	return nil
}

// ValidKind reports whether kind is one ApplyFeedback and Override accept.
// Callers that stage multiple mutations ahead of ApplyFeedback (session.
// EndTurn) use this to validate the kind up front, before any of those
// mutations run.
func ValidKind(kind string) bool {
	switch kind {
	case "behavioral", "tool", "model":
		return true
	default:
		return false
	}
}

func expired(ov override) bool {
	return !ov.expiresAt.IsZero() && time.Now().After(ov.expiresAt)
}

// GetSnapshot returns a deep, immutable copy of every weight (spec §4.1).
func (e *Engine) GetSnapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Behavioral: make(map[string]float64, len(e.behavioral)),
		Tools:      make(map[cortex.EntityId]float64, len(e.tools)),
		Models:     make(map[cortex.EntityId]float64, len(e.models)),
		TakenAt:    time.Now(),
	}
	for name := range e.behavioral {
		snap.Behavioral[name] = e.effectiveBehavioral(name)
	}
	for id, w := range e.tools {
		snap.Tools[id] = e.overrideOrMean("tool", id, w)
	}
	for id, w := range e.models {
		snap.Models[id] = e.overrideOrMean("model", id, w)
	}
	return snap
}
