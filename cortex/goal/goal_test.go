package goal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	return New(config.Default().Goal, nil)
}

// G1: once loop detection fires, the recommended action is always replan,
// regardless of alignment/drift/stall state.
func TestLoopDetectionForcesReplan(t *testing.T) {
	tr := newTracker(t)
	tr.SetPlan("fetch the weather report", []string{"step"})

	var last StepResult
	for i := 0; i < 5; i++ {
		res, err := tr.VerifyStep("check weather", "weather report fetched")
		require.NoError(t, err)
		last = res
	}
	require.True(t, last.LoopDetected)
	require.Equal(t, ActionReplan, last.Action)
}

func TestHighAlignmentNoLoopContinues(t *testing.T) {
	tr := newTracker(t)
	tr.SetPlan("fetch the weather report for tomorrow", []string{"a", "b", "c", "d", "e", "f", "g", "h"})

	res, err := tr.VerifyStep("fetch weather report", "the weather report for tomorrow is sunny")
	require.NoError(t, err)
	require.Equal(t, ActionContinue, res.Action)
}

func TestLowAlignmentAborts(t *testing.T) {
	tr := newTracker(t)
	tr.SetPlan("book a flight to paris", []string{"a"})

	res, err := tr.VerifyStep("irrelevant step", "nothing related whatsoever")
	require.NoError(t, err)
	require.Equal(t, ActionAbort, res.Action)
}

func TestProgressIsMonotonic(t *testing.T) {
	tr := newTracker(t)
	tr.SetPlan("book a flight to paris", []string{"a", "b", "c"})

	res1, err := tr.VerifyStep("book flight to paris", "flight booked")
	require.NoError(t, err)
	res2, err := tr.VerifyStep("irrelevant filler text that matches nothing", "nothing")
	require.NoError(t, err)
	require.GreaterOrEqual(t, res2.Progress, res1.Progress)
}

func TestLLMVerifyBlendsWhenHeuristicLow(t *testing.T) {
	calls := 0
	llm := func(goal, desc, output string) float64 {
		calls++
		return 1.0
	}
	tr := New(config.Default().Goal, llm)
	tr.SetPlan("book a flight to paris", []string{"a"})

	res, err := tr.VerifyStep("unrelated text", "more unrelated text")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Greater(t, res.Alignment, 0.3)
}

func TestResetLoopDetectionPreservesProgress(t *testing.T) {
	tr := newTracker(t)
	tr.SetPlan("book a flight to paris", []string{"a", "b"})
	_, err := tr.VerifyStep("book flight to paris", "flight booked")
	require.NoError(t, err)
	progressBefore := tr.progress

	tr.ResetLoopDetection()
	require.Equal(t, progressBefore, tr.progress)
	require.Equal(t, 0, tr.loopCount)
}

func TestSetPlanResetsState(t *testing.T) {
	tr := newTracker(t)
	tr.SetPlan("a", []string{"x"})
	_, err := tr.VerifyStep("x", "x")
	require.NoError(t, err)

	tr.SetPlan("b", []string{"y"})
	require.Equal(t, 0.0, tr.progress)
	require.Equal(t, 2, tr.GoalVersion())
}

func TestVerifyStepWithoutPlanErrors(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.VerifyStep("x", "y")
	require.Error(t, err)
}
