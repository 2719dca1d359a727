// Package goal implements the Goal Tracker (spec §4.4): plan steps, loop
// detection over a ring buffer of step hashes, heuristic/LLM-blended
// alignment, monotonic progress, drift, stall counting and a fixed
// recommended-action rule table.
package goal

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
)

// Action is the recommended next action from spec §4.4's rule table.
type Action string

const (
	ActionContinue Action = "continue"
	ActionAdjust   Action = "adjust"
	ActionAbort    Action = "abort"
	ActionReplan   Action = "replan"
)

// LLMVerify is the optional collaborator that blends with the heuristic
// alignment score when the heuristic falls below 0.7 (spec §4.4 step 3).
type LLMVerify func(goal, desc, output string) float64

// StepResult is what VerifyStep returns for one plan step.
type StepResult struct {
	Alignment    float64
	Progress     float64
	Drift        float64
	StallTurns   int
	LoopDetected bool
	LoopCount    int
	Action       Action
}

// Tracker owns one session's plan and loop/alignment/progress state.
type Tracker struct {
	cfg config.GoalConfig

	goal        string
	steps       []string
	stepIndex   int
	goalVersion int

	ring      []string
	ringPos   int
	loopCount int

	progress       float64
	alignmentEMA   float64
	haveAlignment  bool
	stallTurns     int

	llmVerify LLMVerify
}

// New constructs a Tracker. llmVerify may be nil, in which case alignment is
// purely heuristic.
func New(cfg config.GoalConfig, llmVerify LLMVerify) *Tracker {
	size := cfg.RingBufferSize
	if size <= 0 {
		size = 16
	}
	return &Tracker{
		cfg:       cfg,
		ring:      make([]string, size),
		llmVerify: llmVerify,
	}
}

// SetPlan installs a new goal and ordered plan steps, resetting the step
// counter, progress and loop state (spec §4.4: "resets step counter"). The
// goal version is incremented so GOAL-scoped modulations elsewhere can be
// invalidated by comparing against GoalVersion().
func (t *Tracker) SetPlan(goalDesc string, steps []string) {
	t.goal = goalDesc
	t.steps = append([]string(nil), steps...)
	t.stepIndex = 0
	t.progress = 0
	t.alignmentEMA = 0
	t.haveAlignment = false
	t.stallTurns = 0
	t.loopCount = 0
	t.goalVersion++
	for i := range t.ring {
		t.ring[i] = ""
	}
	t.ringPos = 0
}

// GoalVersion returns the plan generation counter, bumped by every SetPlan.
func (t *Tracker) GoalVersion() int { return t.goalVersion }

// VerifyStep records one executed step's description and output, computing
// loop detection, alignment, progress, drift and stall state, and returns
// the recommended action (spec §4.4).
func (t *Tracker) VerifyStep(desc, output string) (StepResult, error) {
	if len(t.steps) == 0 {
		return StepResult{}, cortex.NewFault("goal.VerifyStep", cortex.ConflictingState, "", "no plan set")
	}

	hash := stateHash(desc, trimOutput(output), t.stepIndex)
	loopDetected := t.recordAndCheckLoop(hash)

	heuristic := heuristicAlignment(t.goal, desc+" "+output)
	alignment := heuristic
	if heuristic < 0.7 && t.llmVerify != nil {
		alignment = 0.7*t.llmVerify(t.goal, desc, output) + 0.3*heuristic
	}
	alignment = cortex.Clamp01(alignment)

	if !t.haveAlignment {
		t.alignmentEMA = alignment
		t.haveAlignment = true
	} else {
		t.alignmentEMA = cortex.EMA(t.alignmentEMA, alignment, t.cfg.AlignmentEMARate)
	}
	drift := cortex.Clamp01(1 - t.alignmentEMA)

	prevProgress := t.progress
	target := float64(t.stepIndex+1) / float64(len(t.steps))
	if target > t.progress {
		t.progress = cortex.Clamp01(target)
	}
	delta := t.progress - prevProgress
	if delta < t.cfg.StallEpsilon {
		t.stallTurns++
	} else {
		t.stallTurns = 0
	}

	if t.stepIndex < len(t.steps)-1 {
		t.stepIndex++
	}

	result := StepResult{
		Alignment:    alignment,
		Progress:     t.progress,
		Drift:        drift,
		StallTurns:   t.stallTurns,
		LoopDetected: loopDetected,
		LoopCount:    t.loopCount,
		Action:       recommendAction(loopDetected, drift, t.stallTurns, alignment, t.cfg),
	}
	return result, nil
}

// ResetLoopDetection clears the loop ring buffer and counter only;
// progress, drift and alignment state are preserved (spec §4.4).
func (t *Tracker) ResetLoopDetection() {
	for i := range t.ring {
		t.ring[i] = ""
	}
	t.ringPos = 0
	t.loopCount = 0
}

func (t *Tracker) recordAndCheckLoop(hash string) bool {
	size := len(t.ring)
	count := 0
	for _, h := range t.ring {
		if h == hash {
			count++
		}
	}
	t.ring[t.ringPos%size] = hash
	t.ringPos++

	loopDetected := count+1 >= t.cfg.LoopThreshold
	if loopDetected {
		t.loopCount++
	}
	return loopDetected
}

// recommendAction applies spec §4.4's first-match-wins rule table.
func recommendAction(loopDetected bool, drift float64, stallTurns int, alignment float64, cfg config.GoalConfig) Action {
	switch {
	case loopDetected || drift >= cfg.DriftCritical || stallTurns >= cfg.ProgressStallTurns:
		return ActionReplan
	case alignment < 0.3:
		return ActionAbort
	case drift >= cfg.DriftWarning || alignment < 0.5:
		return ActionAdjust
	default:
		return ActionContinue
	}
}

func trimOutput(output string) string {
	const maxLen = 200
	if len(output) <= maxLen {
		return output
	}
	return output[:maxLen]
}

func stateHash(desc, outputTrimmed string, stepIndex int) string {
	h := sha256.Sum256([]byte(desc + "\x00" + outputTrimmed + "\x00" + strconv.Itoa(stepIndex)))
	return hex.EncodeToString(h[:])
}

// heuristicAlignment computes |keywords(goal) ∩ keywords(text)| / |keywords(goal)|
// (spec §4.4 step 2).
func heuristicAlignment(goal, text string) float64 {
	goalWords := keywordSet(goal)
	if len(goalWords) == 0 {
		return 1
	}
	textWords := keywordSet(text)
	hit := 0
	for w := range goalWords {
		if _, ok := textWords[w]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(goalWords))
}

func keywordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if len(w) < 3 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
