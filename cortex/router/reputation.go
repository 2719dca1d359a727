package router

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
)

// entityReputation is one entity's trust and quarantine state (spec §4.6).
type entityReputation struct {
	trust               float64
	consecutiveFailures int
	quarantinedUntil    time.Time
}

func (r entityReputation) quarantined(now time.Time) bool {
	return !r.quarantinedUntil.IsZero() && now.Before(r.quarantinedUntil)
}

// Reputation tracks trust and quarantine state for a population of
// entities (tools, models). Quarantine duration follows an exponential
// backoff curve with RandomizationFactor 0, so repeated failures produce
// the same quarantine length every time (spec §1 "core is deterministic").
type Reputation struct {
	mu sync.Mutex

	alpha              float64 // success pull rate
	beta               float64 // consistency bonus weight
	quarantineAfter    int     // K: consecutive failures before quarantine
	quarantineBase     time.Duration

	entities map[cortex.EntityId]*entityReputation
}

// NewReputation constructs a Reputation tracker. quarantineAfter is K from
// spec §4.6; quarantineBase is the backoff curve's initial interval.
func NewReputation(alpha, beta float64, quarantineAfter int, quarantineBase time.Duration) *Reputation {
	return &Reputation{
		alpha:           alpha,
		beta:            beta,
		quarantineAfter: quarantineAfter,
		quarantineBase:  quarantineBase,
		entities:        make(map[cortex.EntityId]*entityReputation),
	}
}

func (r *Reputation) get(id cortex.EntityId) *entityReputation {
	e, ok := r.entities[id]
	if !ok {
		e = &entityReputation{trust: 0.5}
		r.entities[id] = e
	}
	return e
}

// RecordOutcome updates an entity's trust EMA and consecutive-failure
// counter, quarantining it once the counter reaches quarantineAfter (spec
// §4.6: trust ← trust + α·(success−trust) + β·consistency_bonus).
func (r *Reputation) RecordOutcome(id cortex.EntityId, success bool, consistencyBonus float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(id)
	successVal := 0.0
	if success {
		successVal = 1.0
	}
	e.trust = cortex.Clamp01(e.trust + r.alpha*(successVal-e.trust) + r.beta*consistencyBonus)

	if success {
		e.consecutiveFailures = 0
		return
	}
	e.consecutiveFailures++
	if e.consecutiveFailures >= r.quarantineAfter {
		d := quarantineDuration(r.quarantineBase, e.consecutiveFailures, r.quarantineAfter)
		e.quarantinedUntil = time.Now().Add(d)
	}
}

// quarantineDuration computes base·2^(failures−K) deterministically using
// backoff's exponential curve with jitter disabled: calling NextBackOff
// (failures-K) times from a fresh ExponentialBackOff walks the same
// geometric sequence the spec's formula describes.
func quarantineDuration(base time.Duration, failures, k int) time.Duration {
	steps := failures - k
	if steps < 0 {
		steps = 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = base * (1 << 20) // effectively unbounded; the spec's formula has no cap
	b.MaxElapsedTime = 0             // never stop based on elapsed time

	// NextBackOff's first call returns ~InitialInterval (2^0), its second
	// call ~InitialInterval*Multiplier (2^1), and so on, so the call that
	// yields base·2^steps is the (steps+1)-th.
	var d time.Duration
	for i := 0; i <= steps; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Trust returns the effective trust for id: 0 while quarantined, else the
// learned value (spec §4.6).
func (r *Reputation) Trust(id cortex.EntityId) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.get(id)
	if e.quarantined(time.Now()) {
		return 0
	}
	return e.trust
}

// Quarantined reports whether id is currently excluded from candidate
// lists.
func (r *Reputation) Quarantined(id cortex.EntityId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id).quarantined(time.Now())
}

// Forgive clears id's quarantine and resets its trust to 0.3, per spec
// §4.6's forgive() contract.
func (r *Reputation) Forgive(id cortex.EntityId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.get(id)
	e.quarantinedUntil = time.Time{}
	e.consecutiveFailures = 0
	e.trust = 0.3
}

// GetAvailableTools filters candidates down to those not currently
// quarantined (spec §4.6).
func (r *Reputation) GetAvailableTools(candidates []cortex.EntityId) []cortex.EntityId {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	out := make([]cortex.EntityId, 0, len(candidates))
	for _, id := range candidates {
		if !r.get(id).quarantined(now) {
			out = append(out, id)
		}
	}
	return out
}
