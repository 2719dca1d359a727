package router

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sumCredits(credits map[string]float64) float64 {
	var s float64
	for _, v := range credits {
		s += v
	}
	return s
}

// S1: exact-mode Shapley efficiency, Σ credits = v(N) within 1e-9.
func TestShapleyExactEfficiency(t *testing.T) {
	players := []string{"a", "b", "c"}
	values := CoalitionValue{
		CoalitionKey([]string{"a"}):           1,
		CoalitionKey([]string{"b"}):           2,
		CoalitionKey([]string{"c"}):           3,
		CoalitionKey([]string{"a", "b"}):      4,
		CoalitionKey([]string{"a", "c"}):      5,
		CoalitionKey([]string{"b", "c"}):      6,
		CoalitionKey([]string{"a", "b", "c"}): 9,
	}
	credits := Shapley(players, values)
	require.InDelta(t, 9.0, sumCredits(credits), 1e-9)
}

func TestShapleySymmetry(t *testing.T) {
	players := []string{"a", "b"}
	values := CoalitionValue{
		CoalitionKey([]string{"a"}):      1,
		CoalitionKey([]string{"b"}):      1,
		CoalitionKey([]string{"a", "b"}): 2,
	}
	credits := Shapley(players, values)
	require.InDelta(t, credits["a"], credits["b"], 1e-9)
}

func TestShapleyDummyPlayerGetsZero(t *testing.T) {
	players := []string{"a", "dummy"}
	values := CoalitionValue{
		CoalitionKey([]string{"a"}):          5,
		CoalitionKey([]string{"dummy"}):      0,
		CoalitionKey([]string{"a", "dummy"}): 5,
	}
	credits := Shapley(players, values)
	require.InDelta(t, 0.0, credits["dummy"], 1e-9)
	require.InDelta(t, 5.0, credits["a"], 1e-9)
}

func TestShapleyMonteCarloUsesAtLeastMinPermutations(t *testing.T) {
	players := make([]string, 9)
	values := CoalitionValue{}
	for i := range players {
		players[i] = string(rune('a' + i))
	}
	// Every coalition worth its size, so v(N) = 9 and each player's fair
	// share is 1.
	for mask := 1; mask < (1 << len(players)); mask++ {
		var coalition []string
		for i := range players {
			if mask&(1<<i) != 0 {
				coalition = append(coalition, players[i])
			}
		}
		values[CoalitionKey(coalition)] = float64(len(coalition))
	}
	credits := Shapley(players, values)
	require.InDelta(t, 9.0, sumCredits(credits), 1e-6)
	for _, p := range players {
		require.True(t, math.Abs(credits[p]-1.0) < 0.5)
	}
}
