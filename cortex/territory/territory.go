// Package territory implements the Cortical Map Reorganizer (spec §4.2):
// territory allocation, co-activation-driven fusion, and similarity-based
// redistribution on removal.
package territory

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
	"github.com/QuestoM/cortex-docs-sub005/cortex/internal/simil"
	"github.com/QuestoM/cortex-docs-sub005/cortex/logger"
)

// Kind is the entity kind tracked by the reorganizer (spec §9: tagged sum
// type replacing the source's dynamic entity-kind dict).
type Kind string

const (
	KindTool     Kind = "tool"
	KindModel    Kind = "model"
	KindBehavior Kind = "behavior"
	KindMerged   Kind = "merged"
)

// Allocation is one entity's territory share (spec §3 TerritoryAllocation).
type Allocation struct {
	EntityID      cortex.EntityId
	Kind          Kind
	Size          float64
	UsageCount    int
	UsageFreq     float64
	LastUsedTurn  int64
	Alpha, Beta   float64
	CreatedAt     time.Time
	Metadata      map[string]string
}

func (a Allocation) quality() float64 {
	if a.Alpha+a.Beta == 0 {
		return 0.5
	}
	return a.Alpha / (a.Alpha + a.Beta)
}

// MergeRecord captures both pre-merge allocations so a fusion can be
// reversed exactly (spec §4.2 "Split").
type MergeRecord struct {
	A, B      Allocation
	MergedAt  time.Time
}

// Merged is a fused representational unit (spec §3 MergedEntity).
type Merged struct {
	MergedID  cortex.EntityId
	SourceIDs []cortex.EntityId
	Territory float64
	Record    MergeRecord
}

// Reorganizer owns one session's territory map, merge set, co-occurrence
// tracker and reorganization scheduler.
type Reorganizer struct {
	mu sync.Mutex

	fusion config.FusionConfig
	reorg  config.ReorganizationConfig
	plast  config.PlasticityConfig
	logger logger.Logger

	territories map[cortex.EntityId]*Allocation
	merges      map[cortex.EntityId]*Merged
	// mergedOf maps a source id still logically alive (post-merge routing
	// target) to the merged id it now attributes usage to.
	mergedOf map[cortex.EntityId]cortex.EntityId

	coOccur map[cortex.EntityId]simil.Vector
	obsPair map[pairKey]int // observed co-occurrence count per unordered pair

	currentTurn int64
	pressure    float64
}

type pairKey struct{ a, b cortex.EntityId }

func newPairKey(a, b cortex.EntityId) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// New constructs a Reorganizer. A nil logger defaults to logger.NoOp.
func New(fusion config.FusionConfig, reorg config.ReorganizationConfig, plast config.PlasticityConfig, log logger.Logger) *Reorganizer {
	if log == nil {
		log = logger.NoOp{}
	}
	return &Reorganizer{
		fusion:      fusion,
		reorg:       reorg,
		plast:       plast,
		logger:      log,
		territories: make(map[cortex.EntityId]*Allocation),
		merges:      make(map[cortex.EntityId]*Merged),
		mergedOf:    make(map[cortex.EntityId]cortex.EntityId),
		coOccur:     make(map[cortex.EntityId]simil.Vector),
		obsPair:     make(map[pairKey]int),
	}
}

// Register creates a territory allocation for entity if one does not already
// exist, giving it a flat Beta(1,1) prior and an even starting share (spec
// §3: "created on register or unknown-entity usage").
func (r *Reorganizer) Register(id cortex.EntityId, kind Kind) *Allocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(id, kind)
}

func (r *Reorganizer) register(id cortex.EntityId, kind Kind) *Allocation {
	if a, ok := r.territories[id]; ok {
		return a
	}
	// Sized at the mean of the existing shares, so after normalizing the
	// new entity holds 1/n of the map and the others shrink proportionally.
	size := 0.0
	if n := len(r.territories); n > 0 {
		var sum float64
		for _, t := range r.territories {
			sum += t.Size
		}
		size = sum / float64(n)
	}
	a := &Allocation{
		EntityID:  id,
		Kind:      kind,
		Size:      size,
		Alpha:     1,
		Beta:      1,
		CreatedAt: time.Now(),
		Metadata:  map[string]string{},
	}
	r.territories[id] = a
	r.normalizeLocked()
	return a
}

// RecordUsage attributes one turn's co-activation to the given entities,
// auto-registering unknown ones as tools (spec §4.2 fusion precondition),
// routing attribution through any prior merge, and accumulating
// reorganization pressure.
func (r *Reorganizer) RecordUsage(ids []cortex.EntityId, quality float64, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentTurn++
	resolved := make([]cortex.EntityId, 0, len(ids))
	for _, id := range ids {
		rid := r.resolve(id)
		if _, ok := r.territories[rid]; !ok {
			r.register(rid, KindTool)
		}
		a := r.territories[rid]
		a.UsageCount++
		a.LastUsedTurn = r.currentTurn
		// quality scales the pseudo-count added to the Beta posterior so
		// quality(e) = alpha/(alpha+beta) (spec §4.2) actually moves with
		// the observation's reported quality instead of a flat +1 per use;
		// success still decides which side of the posterior it lands on.
		weight := cortex.Clamp01(quality)
		if success {
			a.Alpha += weight
		} else {
			a.Beta += 1 - weight
		}
		resolved = append(resolved, rid)
	}

	for i := 0; i < len(resolved); i++ {
		for j := i + 1; j < len(resolved); j++ {
			key := newPairKey(resolved[i], resolved[j])
			r.obsPair[key]++
			r.bumpCoOccurrence(resolved[i], resolved[j])
		}
	}

	r.pressure += pressureFor(len(resolved))
	if r.pressure >= r.reorg.PressureThreshold || r.currentTurn%int64(maxInt(r.reorg.PeriodicInterval, 1)) == 0 {
		r.reorganizeLocked()
	}
}

// pressureFor weights a turn's pressure contribution by how many entities
// co-activated — more simultaneous activity means more reorganization signal.
func pressureFor(nEntities int) float64 {
	if nEntities <= 1 {
		return 0.5
	}
	return 0.5 + float64(nEntities-1)*0.75
}

func (r *Reorganizer) bumpCoOccurrence(a, b cortex.EntityId) {
	if r.coOccur[a] == nil {
		r.coOccur[a] = simil.Vector{}
	}
	if r.coOccur[b] == nil {
		r.coOccur[b] = simil.Vector{}
	}
	r.coOccur[a][string(b)]++
	r.coOccur[b][string(a)]++
}

// resolve follows the merge-attribution chain for an id.
func (r *Reorganizer) resolve(id cortex.EntityId) cortex.EntityId {
	if m, ok := r.mergedOf[id]; ok {
		return m
	}
	return id
}

// Reorganize runs the maintenance cycle on demand: recompute frequency,
// adjust territories, merges, disuse shrinks, splits, normalize (spec §4.2
// "Scheduler"). The cycle has no decay step: usage and co-occurrence counts
// are never decayed. It is also triggered implicitly by RecordUsage
// once pressure crosses the threshold or the periodic interval elapses.
func (r *Reorganizer) Reorganize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reorganizeLocked()
}

func (r *Reorganizer) reorganizeLocked() {
	snapshot := r.snapshotForRollback()
	defer func() {
		if p := recover(); p != nil {
			r.restoreLocked(snapshot)
			r.logger.Error("reorganization cycle panicked, rolled back", map[string]interface{}{"panic": p})
		}
	}()

	r.recomputeFrequencies()
	r.applyTerritoryFormula()
	r.runFusions()
	r.shrinkDisused()
	r.runSplits()
	r.normalizeLocked()
	r.pressure = 0
}

func (r *Reorganizer) recomputeFrequencies() {
	total := 0
	for _, a := range r.territories {
		total += a.UsageCount
	}
	for _, a := range r.territories {
		if total == 0 {
			a.UsageFreq = 0
			continue
		}
		a.UsageFreq = float64(a.UsageCount) / float64(total)
	}
}

// applyTerritoryFormula implements spec §4.2's plasticity rule:
//
//	raw(e) = 0.40*usage_freq + 0.35*quality + 0.25*recency
//	territory(e) = raw(e) / sum(raw)
func (r *Reorganizer) applyTerritoryFormula() {
	raws := make(map[cortex.EntityId]float64, len(r.territories))
	var sum float64
	for id, a := range r.territories {
		recency := recencyOf(a.LastUsedTurn, r.currentTurn, r.plast.DisuseThresholdTurns)
		raw := 0.40*a.UsageFreq + 0.35*a.quality() + 0.25*recency
		raws[id] = raw
		sum += raw
	}
	if sum == 0 {
		return
	}
	for id, a := range r.territories {
		a.Size = raws[id] / sum
	}
}

func recencyOf(lastUsedTurn, currentTurn int64, disuseThreshold int) float64 {
	if disuseThreshold <= 0 {
		return 0
	}
	idle := currentTurn - lastUsedTurn
	if idle < 0 {
		idle = 0
	}
	return cortex.Clamp01(1 - float64(idle)/float64(disuseThreshold))
}

// runFusions merges every pair whose co-occurrence crosses merge_threshold
// and whose observation counts both clear merge_min_observations (spec
// §4.2 "Fusion").
func (r *Reorganizer) runFusions() {
	type candidate struct {
		key   pairKey
		score float64
	}
	var candidates []candidate
	for key, obs := range r.obsPair {
		if obs < r.fusion.MergeMinObservations {
			continue
		}
		a, okA := r.territories[key.a]
		b, okB := r.territories[key.b]
		if !okA || !okB {
			continue
		}
		if a.UsageCount < r.fusion.MergeMinObservations || b.UsageCount < r.fusion.MergeMinObservations {
			continue
		}
		score := r.coOccurrenceScore(key.a, key.b)
		if score >= r.fusion.MergeThreshold {
			candidates = append(candidates, candidate{key, score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	for _, c := range candidates {
		if _, ok := r.territories[c.key.a]; !ok {
			continue
		}
		if _, ok := r.territories[c.key.b]; !ok {
			continue
		}
		r.mergePair(c.key.a, c.key.b)
	}
}

// coOccurrenceScore normalizes the raw observed pair count against each
// entity's total usage, giving a [0,1] co-occurrence rate comparable to
// merge_threshold.
func (r *Reorganizer) coOccurrenceScore(a, b cortex.EntityId) float64 {
	obs := float64(r.obsPair[newPairKey(a, b)])
	ta, tb := r.territories[a], r.territories[b]
	denom := float64(minInt(ta.UsageCount, tb.UsageCount))
	if denom == 0 {
		return 0
	}
	return cortex.Clamp01(obs / denom)
}

// mergePair fuses a and b into a new merged entity (spec §4.2 "Fusion").
// Merged id is never simultaneously present as its source ids — both are
// removed from the live territory map and routed through mergedOf.
func (r *Reorganizer) mergePair(a, b cortex.EntityId) {
	allocA, allocB := *r.territories[a], *r.territories[b]
	mergedID := cortex.EntityId(string(a) + "+" + string(b))

	merged := &Allocation{
		EntityID:     mergedID,
		Kind:         KindMerged,
		Size:         allocA.Size + allocB.Size,
		UsageCount:   allocA.UsageCount + allocB.UsageCount,
		LastUsedTurn: maxInt64(allocA.LastUsedTurn, allocB.LastUsedTurn),
		Alpha:        allocA.Alpha + allocB.Alpha,
		Beta:         allocA.Beta + allocB.Beta,
		CreatedAt:    time.Now(),
		Metadata:     map[string]string{},
	}

	delete(r.territories, a)
	delete(r.territories, b)
	r.territories[mergedID] = merged

	r.merges[mergedID] = &Merged{
		MergedID:  mergedID,
		SourceIDs: []cortex.EntityId{a, b},
		Territory: merged.Size,
		Record: MergeRecord{
			A:        allocA,
			B:        allocB,
			MergedAt: time.Now(),
		},
	}
	r.mergedOf[a] = mergedID
	r.mergedOf[b] = mergedID

	r.logger.Info("territories merged", map[string]interface{}{
		"merged_id": string(mergedID), "a": string(a), "b": string(b), "size": merged.Size,
	})
}

// Split reverses a merge once internal co-occurrence drops below
// split_threshold (spec §4.2 "Split"). It restores the two source
// allocations from the MergeRecord, redistributing the merged territory
// proportionally to their pre-merge sizes.
func (r *Reorganizer) Split(mergedID cortex.EntityId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.split(mergedID)
}

func (r *Reorganizer) split(mergedID cortex.EntityId) error {
	m, ok := r.merges[mergedID]
	if !ok {
		return cortex.WrapFault("territory.Split", cortex.ConflictingState, string(mergedID), cortex.ErrNotMerged)
	}
	current, ok := r.territories[mergedID]
	if !ok {
		return cortex.NewFault("territory.Split", cortex.NotFound, string(mergedID), "merged entity has no live territory")
	}

	preA, preB := m.Record.A, m.Record.B
	preTotal := preA.Size + preB.Size
	var shareA, shareB float64
	if preTotal > 0 {
		shareA = preA.Size / preTotal
		shareB = preB.Size / preTotal
	} else {
		shareA, shareB = 0.5, 0.5
	}

	restoredA := preA
	restoredB := preB
	restoredA.Size = current.Size * shareA
	restoredB.Size = current.Size * shareB

	delete(r.territories, mergedID)
	delete(r.merges, mergedID)
	delete(r.mergedOf, restoredA.EntityID)
	delete(r.mergedOf, restoredB.EntityID)

	aCopy, bCopy := restoredA, restoredB
	r.territories[restoredA.EntityID] = &aCopy
	r.territories[restoredB.EntityID] = &bCopy

	r.logger.Info("merged entity split", map[string]interface{}{
		"merged_id": string(mergedID), "a": string(restoredA.EntityID), "b": string(restoredB.EntityID),
	})
	return nil
}

// runSplits finds merged entities whose internal co-occurrence rate has
// fallen below split_threshold and splits them.
func (r *Reorganizer) runSplits() {
	for id, m := range r.merges {
		score := r.coOccurrenceScore(m.SourceIDs[0], m.SourceIDs[1])
		if score < r.fusion.SplitThreshold {
			_ = r.split(id)
		}
	}
}

// shrinkDisused reduces the territory of entities idle beyond
// disuse_threshold_turns, reclaiming their share for redistribution at the
// next normalize.
func (r *Reorganizer) shrinkDisused() {
	for _, a := range r.territories {
		if r.plast.DisuseThresholdTurns <= 0 {
			continue
		}
		idle := r.currentTurn - a.LastUsedTurn
		if idle > int64(r.plast.DisuseThresholdTurns) {
			a.Size *= 0.5
		}
	}
}

// Remove deletes an entity's territory, redistributing its share to the
// remaining entities proportionally to similarity^similarity_exponent (spec
// §4.2 "Redistribution on remove"), with a similarity floor so a wholly
// dissimilar entity still receives a small increment.
func (r *Reorganizer) Remove(id cortex.EntityId) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, ok := r.territories[id]
	if !ok {
		return cortex.NewFault("territory.Remove", cortex.NotFound, string(id), "entity has no territory")
	}
	delete(r.territories, id)
	removedVec := r.coOccur[id]
	delete(r.coOccur, id)

	if len(r.territories) == 0 {
		return nil
	}

	type weighted struct {
		id     cortex.EntityId
		weight float64
	}
	var weights []weighted
	var sum float64
	for otherID := range r.territories {
		sim := simil.TerritoryBlend(removedVec, r.coOccur[otherID])
		if sim < r.reorg.SimilarityFloor {
			sim = r.reorg.SimilarityFloor
		}
		w := powFloat(sim, r.fusion.SimilarityExponent)
		weights = append(weights, weighted{otherID, w})
		sum += w
	}
	if sum > 0 {
		for _, w := range weights {
			r.territories[w.id].Size += removed.Size * (w.weight / sum)
		}
	}
	r.normalizeLocked()
	return nil
}

// normalizeLocked rescales every territory so sizes sum to 1 within
// floating-point tolerance (spec §4.2 invariant, tested as T1).
func (r *Reorganizer) normalizeLocked() {
	var sum float64
	for _, a := range r.territories {
		sum += a.Size
	}
	if sum <= 0 {
		if len(r.territories) == 0 {
			return
		}
		even := 1.0 / float64(len(r.territories))
		for _, a := range r.territories {
			a.Size = even
		}
		return
	}
	for _, a := range r.territories {
		a.Size /= sum
	}
}

// Export returns a copy of the territory map (its iteration order is not
// defined), suitable for
// the territories/<tenant>/<session>.json persisted layout (spec §6).
func (r *Reorganizer) Export() map[cortex.EntityId]Allocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[cortex.EntityId]Allocation, len(r.territories))
	for id, a := range r.territories {
		out[id] = *a
	}
	return out
}

// TotalTerritory sums every live territory size, exposed for T1 testing.
func (r *Reorganizer) TotalTerritory() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, a := range r.territories {
		sum += a.Size
	}
	return sum
}

func (r *Reorganizer) snapshotForRollback() map[cortex.EntityId]Allocation {
	out := make(map[cortex.EntityId]Allocation, len(r.territories))
	for id, a := range r.territories {
		out[id] = *a
	}
	return out
}

func (r *Reorganizer) restoreLocked(snap map[cortex.EntityId]Allocation) {
	r.territories = make(map[cortex.EntityId]*Allocation, len(snap))
	for id, a := range snap {
		aCopy := a
		r.territories[id] = &aCopy
	}
}

func powFloat(base, exp float64) float64 {
	return math.Pow(base, exp)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
