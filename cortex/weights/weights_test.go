package weights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
	"github.com/QuestoM/cortex-docs-sub005/cortex/logger"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return New(config.Default().Feedback, config.Default().Plasticity, logger.NoOp{})
}

// W1: behavioral weight never leaves [-1,1] after any public operation.
func TestBehavioralWeightStaysClamped(t *testing.T) {
	e := newEngine(t)
	for i := 0; i < 1000; i++ {
		require.NoError(t, e.ApplyFeedback("behavioral", "tone", Success, Tier1Direct))
	}
	v := e.GetBehavioral("tone")
	require.GreaterOrEqual(t, v, -1.0)
	require.LessOrEqual(t, v, 1.0)

	for i := 0; i < 1000; i++ {
		require.NoError(t, e.ApplyFeedback("behavioral", "tone", Failure, Tier3Enterprise))
	}
	v = e.GetBehavioral("tone")
	require.GreaterOrEqual(t, v, -1.0)
	require.LessOrEqual(t, v, 1.0)
}

// W2: all-success feedback for a tool never decreases its posterior mean.
func TestToolFeedbackMonotonicOnAllSuccess(t *testing.T) {
	e := newEngine(t)
	prev := e.ToolPreference("search")
	for i := 0; i < 20; i++ {
		require.NoError(t, e.ApplyFeedback("tool", "search", Success, Tier1Direct))
		cur := e.ToolPreference("search")
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestUnknownEntityAutoRegistersWithFlatPrior(t *testing.T) {
	e := newEngine(t)
	require.Equal(t, 0.5, e.ToolPreference("brand-new-tool"))
}

func TestDisabledTierIsNoOp(t *testing.T) {
	e := newEngine(t)
	before := e.ToolPreference("search")
	require.NoError(t, e.ApplyFeedback("tool", "search", Success, Tier3Enterprise))
	require.Equal(t, before, e.ToolPreference("search"))
}

func TestInvalidKindReturnsInvalidArgument(t *testing.T) {
	e := newEngine(t)
	err := e.ApplyFeedback("nonsense", "x", Success, Tier1Direct)
	require.Error(t, err)
}

func TestOverrideWinsOverLearnedValue(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.ApplyFeedback("tool", "search", Success, Tier1Direct))
	learned := e.ToolPreference("search")
	require.NoError(t, e.Override("tool", "search", 0.9, time.Minute))
	require.NotEqual(t, learned, e.ToolPreference("search"))
	require.Equal(t, 0.9, e.ToolPreference("search"))
}

func TestOverrideExpires(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Override("behavioral", "tone", 0.75, time.Nanosecond))
	time.Sleep(time.Millisecond)
	require.NotEqual(t, 0.75, e.GetBehavioral("tone"))
}

func TestDecayPullsPreferencesTowardFlatPrior(t *testing.T) {
	e := newEngine(t)
	for i := 0; i < 20; i++ {
		require.NoError(t, e.ApplyFeedback("tool", "search", Success, Tier1Direct))
	}
	before := e.ToolPreference("search")
	for i := 0; i < 50; i++ {
		e.Decay(1)
	}
	after := e.ToolPreference("search")
	require.Less(t, after, before)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.ApplyFeedback("tool", "search", Success, Tier1Direct))
	snap := e.GetSnapshot()
	require.NoError(t, e.ApplyFeedback("tool", "search", Success, Tier1Direct))
	require.NotEqual(t, snap.Tools["search"], e.ToolPreference("search"))
}

// Snapshot reads must honor the same "effective = override ?? learned" rule
// as the live getters, for every weight class, not just behavioral.
func TestSnapshotReflectsOverridesForToolsAndModels(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.ApplyFeedback("tool", "search", Success, Tier1Direct))
	require.NoError(t, e.ApplyFeedback("model", "gpt", Success, Tier1Direct))

	require.NoError(t, e.Override("tool", "search", 0.9, time.Minute))
	require.NoError(t, e.Override("model", "gpt", 0.1, time.Minute))

	snap := e.GetSnapshot()
	require.Equal(t, 0.9, snap.Tools["search"])
	require.Equal(t, 0.1, snap.Models["gpt"])
}
