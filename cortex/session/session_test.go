package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
	"github.com/QuestoM/cortex-docs-sub005/cortex/logger"
	"github.com/QuestoM/cortex-docs-sub005/cortex/modulator"
	"github.com/QuestoM/cortex-docs-sub005/cortex/resolver"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New("tenant-a", "session-a", Options{Config: config.Default()})
	require.NoError(t, err)
	return s
}

func baseTurn() TurnContext {
	return TurnContext{
		TenantID:  "tenant-a",
		SessionID: "session-a",
		TaskType:  "coding",
	}
}

// A Session with no explicit Logger dispatches to the backend named by
// config.LoggingConfig.Backend, including the zap backend.
func TestNewDispatchesConfiguredLoggerBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Backend = "zap"
	s, err := New("tenant-a", "session-a", Options{Config: cfg})
	require.NoError(t, err)
	require.NotNil(t, s)

	if z, ok := s.log.(*logger.Zap); ok {
		defer z.Sync()
	} else {
		t.Fatalf("expected *logger.Zap, got %T", s.log)
	}
}

func TestNewRejectsInvalidIDs(t *testing.T) {
	_, err := New("", "session-a", Options{})
	require.True(t, cortex.Is(err, cortex.InvalidArgument))

	_, err = New("tenant-a", "", Options{})
	require.True(t, cortex.Is(err, cortex.InvalidArgument))
}

func TestBeginResolveEndTurnHappyPath(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.BeginTurn(baseTurn()))

	result, err := s.Resolve(ResolveRequest{
		TaskType:          "coding",
		Provider:          "anthropic",
		Model:             "claude",
		Confidence:        0.8,
		AttentionPriority: resolver.AttentionNormal,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Bundle.Temperature)

	err = s.EndTurn(context.Background(), &Observation{
		EntityID: "search-tool",
		Kind:     "tool",
		Success:  true,
		Quality:  0.9,
		Channel:  "coding",
		Predicted: 0.5,
		Observed:  0.6,
	})
	require.NoError(t, err)

	trace := s.DecisionTrace()
	require.Len(t, trace, 1)
	require.Equal(t, "routing", trace[0].Category)
}

func TestResolveBeforeBeginTurnFails(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Resolve(ResolveRequest{TaskType: "coding"})
	require.True(t, cortex.Is(err, cortex.ConflictingState))
}

func TestEndTurnBeforeBeginTurnFails(t *testing.T) {
	s := newTestSession(t)
	err := s.EndTurn(context.Background(), nil)
	require.True(t, cortex.Is(err, cortex.ConflictingState))
}

func TestDoubleBeginTurnFails(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.BeginTurn(baseTurn()))
	err := s.BeginTurn(baseTurn())
	require.True(t, cortex.Is(err, cortex.ConflictingState))
}

// Abandoning a turn (no EndTurn call, or EndTurn with a nil Observation)
// leaves no mutation beyond the idempotent modulator tick.
func TestAbandonedTurnLeavesNoMutation(t *testing.T) {
	s := newTestSession(t)
	before := s.WeightSnapshot()

	require.NoError(t, s.BeginTurn(baseTurn()))
	_, err := s.Resolve(ResolveRequest{TaskType: "coding", Provider: "anthropic", Model: "claude"})
	require.NoError(t, err)
	require.NoError(t, s.EndTurn(context.Background(), nil))

	after := s.WeightSnapshot()
	require.Equal(t, before.Behavioral, after.Behavioral)
	require.Equal(t, before.Tools, after.Tools)
	require.Equal(t, before.Models, after.Models)

	require.False(t, s.open)

	require.NoError(t, s.BeginTurn(baseTurn()))
}

// EndTurn must validate every fallible sub-step before mutating any
// collaborator. A step verified with no plan ever installed errors out of
// goalTracker.VerifyStep — that error must surface before the weight
// feedback in the same Observation is ever applied, not after.
func TestEndTurnNoPlanErrorLeavesWeightsUntouched(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.BeginTurn(baseTurn()))
	before := s.WeightSnapshot()

	err := s.EndTurn(context.Background(), &Observation{
		EntityID: "search-tool",
		Kind:     "tool",
		Success:  true,
		Quality:  0.9,
		StepDesc: "did something",
	})
	require.True(t, cortex.Is(err, cortex.ConflictingState))

	after := s.WeightSnapshot()
	require.Equal(t, before.Tools, after.Tools)
	require.Empty(t, s.AuditTail(10))
}

// Out-of-range quality eventually fails inside predict.RecordCalibration;
// that failure must be caught before weight feedback and reputation are
// applied, leaving both collaborators exactly as they were.
func TestEndTurnOutOfRangeQualityLeavesWeightsUntouched(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.BeginTurn(baseTurn()))
	before := s.WeightSnapshot()

	err := s.EndTurn(context.Background(), &Observation{
		EntityID:  "search-tool",
		Kind:      "tool",
		Success:   true,
		Quality:   1.5,
		Channel:   "coding",
		Predicted: 0.5,
		Observed:  0.6,
	})
	require.True(t, cortex.Is(err, cortex.InvalidArgument))

	after := s.WeightSnapshot()
	require.Equal(t, before.Tools, after.Tools)
	require.Empty(t, s.AuditTail(10))
}

// Mirrors spec §8's "Modulator CLAMP dominates" scenario at the Session
// level: a CLAMP on temperature must flow through to the resolved bundle
// regardless of what routing or provider constraints would otherwise pick.
func TestResolveHonorsActiveClamp(t *testing.T) {
	s := newTestSession(t)
	s.Modulator().Add(modulator.Modulation{
		Target:     "temperature",
		Type:       modulator.Clamp,
		Scope:      modulator.ScopeSession,
		Source:     "user",
		Priority:   5,
		ClampValue: 0.2,
	})

	require.NoError(t, s.BeginTurn(baseTurn()))
	result, err := s.Resolve(ResolveRequest{
		TaskType: "coding",
		Provider: "anthropic",
		Model:    "claude",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Bundle.Temperature)
	require.Equal(t, 0.2, *result.Bundle.Temperature)
}

func TestResolveIsSafeToCallTwice(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.BeginTurn(baseTurn()))

	req := ResolveRequest{TaskType: "coding", Provider: "anthropic", Model: "claude"}
	first, err := s.Resolve(req)
	require.NoError(t, err)
	second, err := s.Resolve(req)
	require.NoError(t, err)
	require.Equal(t, first.Process, second.Process)
}
