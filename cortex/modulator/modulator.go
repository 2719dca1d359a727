// Package modulator implements the Targeted Modulator (spec §4.3): scoped,
// prioritized overrides that bias an effective value without ever touching
// the territory or weight state underneath it.
package modulator

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/logger"
)

// Type is one of the five modulation kinds from spec §4.3.
type Type int

const (
	Activate Type = iota
	Silence
	Amplify
	Dampen
	Clamp
)

// Scope controls when a Modulation expires (spec §4.3 "tick(now)").
type Scope int

const (
	ScopeTurn Scope = iota
	ScopeSession
	ScopeGoal
	ScopePermanent
	ScopeConditional
)

// Predicate is the caller-supplied collaborator a CONDITIONAL modulation
// polls on every Tick to decide whether it is still active.
type Predicate func() bool

// Range is the legal value range a parameter's effective value must stay
// within after AMPLIFY/DAMPEN or CLAMP is applied. A zero Range (Lo==Hi==0)
// means unbounded.
type Range struct{ Lo, Hi float64 }

func (r Range) bounded() bool { return r.Lo != 0 || r.Hi != 0 }

// Modulation is one active override (spec §3).
type Modulation struct {
	ID          string
	Target      string
	Type        Type
	Scope       Scope
	Source      string
	Priority    int
	Strength    float64 // ACTIVATE value, or the AMPLIFY/DAMPEN factor
	ClampValue  float64 // used only when Type == Clamp
	Predicate   Predicate
	CreatedAt   time.Time
	GoalVersion int // SESSION/GOAL-scoped entries compare against the current goal version at clear time
}

func (m Modulation) isEnterprise() bool {
	return m.Source == "enterprise" && m.Priority >= 100
}

// Modulator owns the active modulation set for one session, keyed by
// modulation id; Apply and ActiveClamp select entries by target.
type Modulator struct {
	mu      sync.Mutex
	logger  logger.Logger
	byID    map[string]*Modulation
	nextSeq int
}

// New constructs a Modulator. A nil logger defaults to logger.NoOp.
func New(log logger.Logger) *Modulator {
	if log == nil {
		log = logger.NoOp{}
	}
	return &Modulator{logger: log, byID: make(map[string]*Modulation)}
}

// Add installs a new modulation, returning its id (generated when mod.ID is
// empty).
func (m *Modulator) Add(mod Modulation) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	if mod.ID == "" {
		mod.ID = mod.Target + "#" + strconv.Itoa(m.nextSeq)
	}
	if mod.CreatedAt.IsZero() {
		mod.CreatedAt = time.Now()
	}
	cp := mod
	m.byID[cp.ID] = &cp
	m.logger.Debug("modulation added", map[string]interface{}{
		"id": cp.ID, "target": cp.Target, "type": int(cp.Type), "scope": int(cp.Scope),
	})
	return cp.ID
}

// Remove deletes a modulation by id. Removing an unknown id is a no-op,
// mirroring idempotent delete semantics elsewhere in the core.
func (m *Modulator) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

// Tick expires TURN-scoped modulations (called once per turn boundary) and
// re-evaluates CONDITIONAL ones against their predicate. SESSION/GOAL
// modulations only expire on an explicit Clear call; PERMANENT never
// expires via Tick.
func (m *Modulator) Tick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, mod := range m.byID {
		switch mod.Scope {
		case ScopeTurn:
			delete(m.byID, id)
		case ScopeConditional:
			if mod.Predicate != nil && !mod.Predicate() {
				delete(m.byID, id)
			}
		}
	}
}

// Clear removes every SESSION-scoped modulation (called at session end) or
// every GOAL-scoped modulation whose GoalVersion differs from current
// (called when the goal tracker advances to a new plan).
func (m *Modulator) Clear(scope Scope, currentGoalVersion int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, mod := range m.byID {
		if mod.Scope != scope {
			continue
		}
		if scope == ScopeGoal && mod.GoalVersion == currentGoalVersion {
			continue
		}
		delete(m.byID, id)
	}
}

// Apply computes the effective value for target given baseline, following
// spec §4.3's four-tier resolution order: CLAMP dominates everything else;
// then the highest-priority enterprise-sourced entry (priority >= 100);
// then the highest-priority remaining entry; ties broken by recency.
// A target with no active modulations returns baseline unchanged (identity).
func (m *Modulator) Apply(target string, baseline float64, rng Range) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*Modulation
	for _, mod := range m.byID {
		if mod.Target == target {
			candidates = append(candidates, mod)
		}
	}
	if len(candidates) == 0 {
		return baseline
	}

	for _, mod := range candidates {
		if mod.Type == Clamp {
			return m.resolveClampWinner(candidates, rng)
		}
	}

	winner := selectWinner(candidates)
	return evaluate(winner, baseline, rng)
}

// ActiveClamp reports the winning CLAMP value for target, if any, letting a
// caller (cortex/resolver's ModulatorClamp tier) observe CLAMP state without
// going through Apply's baseline-driven resolution (spec §4.7's priority
// ladder keeps CLAMP and column_override as distinct, independently-queried
// tiers).
func (m *Modulator) ActiveClamp(target string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var clamps []*Modulation
	for _, mod := range m.byID {
		if mod.Target == target && mod.Type == Clamp {
			clamps = append(clamps, mod)
		}
	}
	if len(clamps) == 0 {
		return 0, false
	}
	return selectWinner(clamps).ClampValue, true
}

// resolveClampWinner picks among competing CLAMP entries by the same
// priority/recency tie-break rule, since CLAMP itself is not unique.
func (m *Modulator) resolveClampWinner(candidates []*Modulation, rng Range) float64 {
	var clamps []*Modulation
	for _, mod := range candidates {
		if mod.Type == Clamp {
			clamps = append(clamps, mod)
		}
	}
	winner := selectWinner(clamps)
	return clampToRange(winner.ClampValue, rng)
}

// selectWinner applies tiers 2-4 of the resolution order: enterprise policy
// first, then highest priority, then most recent.
func selectWinner(candidates []*Modulation) *Modulation {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.isEnterprise() != b.isEnterprise() {
			return a.isEnterprise()
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return candidates[0]
}

func evaluate(mod *Modulation, baseline float64, rng Range) float64 {
	switch mod.Type {
	case Activate:
		return clampToRange(mod.Strength, rng)
	case Silence:
		return clampToRange(0, rng)
	case Amplify, Dampen:
		return clampToRange(baseline*mod.Strength, rng)
	case Clamp:
		return clampToRange(mod.ClampValue, rng)
	default:
		return baseline
	}
}

func clampToRange(v float64, rng Range) float64 {
	if !rng.bounded() {
		return v
	}
	return cortex.Clamp(v, rng.Lo, rng.Hi)
}

