package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
)

func ptr(v float64) *float64 { return &v }

// P1: identical inputs yield identical bundles.
func TestResolveIsPure(t *testing.T) {
	in := Input{TaskType: "chat", Model: "gpt-5", Process: System2, Surprise: 0.2, Confidence: 0.8, Creativity: 0.1}
	providers := config.Default().Providers

	b1 := Resolve(in, providers)
	b2 := Resolve(in, providers)
	require.Equal(t, *b1.Temperature, *b2.Temperature)
	require.Equal(t, *b1.TopP, *b2.TopP)
	require.Equal(t, *b1.MaxTokens, *b2.MaxTokens)
}

// P2: Gemini-3 models force temperature=1.0 regardless of brain signals,
// absent a CLAMP/column override.
func TestGemini3ForcesTemperature(t *testing.T) {
	in := Input{TaskType: "creative", Model: "gemini-3-pro", Process: System2, Surprise: 0.9, Confidence: 0.1, Creativity: 1.0}
	b := Resolve(in, config.Default().Providers)
	require.Equal(t, 1.0, *b.Temperature)
}

// Scenario: Modulator CLAMP dominates (spec §8 scenario 3). baseline
// signals here would resolve to temperature≈0.8 (0.6 + 0.33·0.3 + 0.5·0.2);
// CLAMP at 0.2 wins even against a column override.
func TestModulatorClampDominatesColumnOverride(t *testing.T) {
	in := Input{
		TaskType:       "chat",
		Model:          "gpt-5",
		Process:        System2,
		Surprise:       0.33,
		Confidence:     0.5,
		ColumnOverride: ColumnOverride{Temperature: ptr(0.9)},
		ModulatorClamp: ModulatorClamp{Temperature: ptr(0.2)},
	}
	b := Resolve(in, config.Default().Providers)
	require.Equal(t, 0.2, *b.Temperature)
}

func TestTaskCeilingCapsTemperature(t *testing.T) {
	in := Input{TaskType: "code", Model: "gpt-5", Process: System2, Surprise: 1.0, Confidence: 0.0, Creativity: 1.0}
	b := Resolve(in, config.Default().Providers)
	require.LessOrEqual(t, *b.Temperature, 0.5)
}

func TestSeedPresentOnlyForSystem1LowSurprise(t *testing.T) {
	in1 := Input{Model: "gpt-5", Process: System1, Surprise: 0.05}
	b1 := Resolve(in1, config.Default().Providers)
	require.NotNil(t, b1.Seed)
	require.Equal(t, 42, *b1.Seed)

	in2 := Input{Model: "gpt-5", Process: System1, Surprise: 0.5}
	b2 := Resolve(in2, config.Default().Providers)
	require.Nil(t, b2.Seed)

	in3 := Input{Model: "gpt-5", Process: System2, Surprise: 0.05}
	b3 := Resolve(in3, config.Default().Providers)
	require.Nil(t, b3.Seed)
}

func TestMaxTokensScalesWithResourceRatioCappedAt2x(t *testing.T) {
	in := Input{Model: "gpt-5", AttentionPriority: AttentionNormal, ResourceTokenRatio: 5.0}
	b := Resolve(in, config.Default().Providers)
	require.Equal(t, 2048, *b.MaxTokens)
}

func TestUnsupportedParamsAreDroppedSilently(t *testing.T) {
	providers := config.ProviderConstraints{
		"limited-model": config.ModelConstraint{SupportedParams: []string{"temperature"}},
	}
	in := Input{Model: "limited-model"}
	b := Resolve(in, providers)
	require.NotNil(t, b.Temperature)
	require.Nil(t, b.TopP)
	require.Nil(t, b.MaxTokens)
}
