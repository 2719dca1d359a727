package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
)

// Scenario: Quarantine & forgive (spec §8 scenario 6).
func TestQuarantineAndForgive(t *testing.T) {
	rep := NewReputation(0.3, 0.1, 3, time.Minute)

	rep.RecordOutcome("tool_q", false, 0)
	rep.RecordOutcome("tool_q", false, 0)
	rep.RecordOutcome("tool_q", false, 0)

	require.True(t, rep.Quarantined("tool_q"))

	// R1: quarantined entities never appear in GetAvailableTools.
	available := rep.GetAvailableTools([]cortex.EntityId{"tool_q", "ok"})
	require.ElementsMatch(t, []cortex.EntityId{"ok"}, available)

	rep.Forgive("tool_q")
	require.Equal(t, 0.3, rep.Trust("tool_q"))
	require.False(t, rep.Quarantined("tool_q"))
}

func TestTrustIsZeroWhileQuarantined(t *testing.T) {
	rep := NewReputation(0.3, 0.1, 2, time.Hour)
	rep.RecordOutcome("x", false, 0)
	rep.RecordOutcome("x", false, 0)
	require.Equal(t, 0.0, rep.Trust("x"))
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	rep := NewReputation(0.3, 0.1, 3, time.Minute)
	rep.RecordOutcome("x", false, 0)
	rep.RecordOutcome("x", false, 0)
	rep.RecordOutcome("x", true, 0)
	rep.RecordOutcome("x", false, 0)
	require.False(t, rep.Quarantined("x"))
}

func TestQuarantineDurationGrowsWithFailures(t *testing.T) {
	d1 := quarantineDuration(time.Second, 3, 3)
	d2 := quarantineDuration(time.Second, 4, 3)
	require.Greater(t, d2, d1)
}
