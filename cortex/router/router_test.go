package router

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario: Dual-process escalation (spec §8 scenario 5).
func TestRouteEscalatesOnGoalDrift(t *testing.T) {
	ctx := RouteContext{Surprise: 0.05, PopulationAgreement: 1.0, Novelty: 0.1, GoalDrift: 0.1}
	require.Equal(t, System1, Route(ctx))

	ctx.GoalDrift = 0.5
	require.Equal(t, System2, Route(ctx))
}

func TestRouteEscalatesOnEachIndividualCondition(t *testing.T) {
	cases := []RouteContext{
		{Surprise: 0.61, PopulationAgreement: 1.0},
		{PopulationAgreement: 0.39},
		{Novelty: 0.71, PopulationAgreement: 1.0},
		{Safety: 0.81, PopulationAgreement: 1.0},
		{ExplicitRequest: true, PopulationAgreement: 1.0},
		{PreviousStepError: true, PopulationAgreement: 1.0},
		{GoalDrift: 0.41, PopulationAgreement: 1.0},
	}
	for _, c := range cases {
		require.Equal(t, System2, Route(c))
	}
}

func TestRouteDefaultsToSystem1(t *testing.T) {
	require.Equal(t, System1, Route(RouteContext{PopulationAgreement: 1.0}))
}
