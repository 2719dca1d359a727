package router

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBestResponseShiftsMassTowardBetterTask(t *testing.T) {
	n := NewNashRouter(0.5, 0.3)
	n.Observe("model-a", "summarize", 1.0, 10, 1)
	n.Observe("model-a", "translate", 1.0, 2, 1)

	before := n.Distribution("model-a")
	require.InDelta(t, 0.5, before["summarize"], 1e-9)

	n.BestResponse(5)
	after := n.Distribution("model-a")
	require.Greater(t, after["summarize"], before["summarize"])
	require.Less(t, after["translate"], before["translate"])
}

func TestBestResponseProbabilitiesStaySumToOne(t *testing.T) {
	n := NewNashRouter(0.5, 0.3)
	n.Observe("model-a", "summarize", 1.0, 10, 1)
	n.Observe("model-a", "translate", 1.0, 2, 1)
	n.Observe("model-a", "classify", 1.0, 5, 1)

	n.BestResponse(10)
	dist := n.Distribution("model-a")
	var sum float64
	for _, p := range dist {
		sum += p
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestObserveUtilityEMASettles(t *testing.T) {
	n := NewNashRouter(0.5, 0.3)
	n.Observe("model-a", "summarize", 1.0, 10, 0)
	n.Observe("model-a", "summarize", 1.0, 10, 0)
	ut := n.utility["model-a"]["summarize"]
	require.InDelta(t, 10.0, ut.ema, 1e-9)
}
