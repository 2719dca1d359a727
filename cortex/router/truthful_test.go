package router

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredibilityIsOneWhenDeclaredMatchesObserved(t *testing.T) {
	s := NewTruthfulScorer(1.0)
	s.Declare("search", Capability{"latency_ms": 100})
	s.ObserveOutcome("search", Capability{"latency_ms": 100})
	require.InDelta(t, 1.0, s.Credibility("search"), 1e-9)
}

func TestCredibilityDropsWhenDeclaredOverstates(t *testing.T) {
	s := NewTruthfulScorer(50.0)
	s.Declare("search", Capability{"latency_ms": 10})
	s.ObserveOutcome("search", Capability{"latency_ms": 100})
	cred := s.Credibility("search")
	require.Less(t, cred, 1.0)
	require.GreaterOrEqual(t, cred, 0.0)
}

func TestAdjustedScoreScalesByCredibility(t *testing.T) {
	s := NewTruthfulScorer(1.0)
	s.Declare("search", Capability{"acc": 1})
	s.ObserveOutcome("search", Capability{"acc": 1})
	require.InDelta(t, 0.8, s.AdjustedScore("search", 0.8), 1e-9)
}

func TestUnknownToolHasFullCredibility(t *testing.T) {
	s := NewTruthfulScorer(1.0)
	require.Equal(t, 1.0, s.Credibility("ghost"))
}
