// Package resolver implements the Parameter Resolver (spec §4.7): a pure
// function from a ResolveInput to a provider-legal ParameterBundle,
// honoring the modulator.CLAMP > column_override > provider_constraint >
// brain_state_computation > task_ceiling priority ladder for temperature
// and analogous rules for every other parameter.
package resolver

import (
	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
)

// ProcessType is which of the dual-process router's two paths produced
// this turn (spec §4.6), used by the resolver's base-temperature and
// top_p rules.
type ProcessType int

const (
	System1 ProcessType = iota
	System2
)

// AttentionPriority is the attention-allocation tier assigned to a turn
// (spec §4.7's "attention" additive term and attention_budget table).
type AttentionPriority int

const (
	AttentionNormal AttentionPriority = iota
	AttentionElevated
	AttentionCritical
	AttentionSubconscious
)

// taskCeiling is the per-task_type temperature ceiling (spec §4.7:
// TASK_CEILING[task_type]). Task types absent from the table get the
// "default" ceiling.
var taskCeiling = map[string]float64{
	"default":    1.2,
	"creative":   2.0,
	"chat":       1.0,
	"analytical": 0.8,
	"code":       0.5,
	"safety":     0.3,
}

// attentionBudget is the per-priority token budget (spec §4.7:
// max_tokens = attention_budget[priority] · resource_token_budget_ratio).
var attentionBudget = map[AttentionPriority]int{
	AttentionSubconscious: 512,
	AttentionNormal:       1024,
	AttentionElevated:     2048,
	AttentionCritical:     4096,
}

// ColumnOverride lets a caller pin a specific parameter's value at the
// column_override tier, above provider_constraint and brain-state
// computation but below modulator.CLAMP (spec §4.7's priority ladder).
type ColumnOverride struct {
	Temperature *float64
	TopP        *float64
}

// ModulatorClamp mirrors a CLAMP modulation already resolved elsewhere
// (cortex/modulator) down to a plain value, so this package stays free of
// a dependency on the modulator's active-modulation bookkeeping.
type ModulatorClamp struct {
	Temperature *float64
	TopP        *float64
}

// Input bundles every field Resolve reads (spec §4.7 ResolveInput).
type Input struct {
	TaskType             string
	Provider             string
	Model                string
	Process              ProcessType
	Surprise             float64
	CalibrationHealth    string // "optimal"|"healthy"|"degrading"|"critical"
	Confidence           float64
	AttentionPriority    AttentionPriority
	Creativity           float64
	Verbosity            float64
	ResourceTokenRatio   float64 // 0 means "use default 1.0"
	ColumnOverride       ColumnOverride
	ModulatorClamp       ModulatorClamp
}

// Bundle is the resolved, provider-filtered parameter set (spec §4.7
// ParameterBundle). Pointer fields are omitted from persistence/wire output
// when nil, mirroring the spec's "?" optional-field notation.
type Bundle struct {
	Temperature      *float64 `json:",omitempty"`
	TopP             *float64 `json:",omitempty"`
	MaxTokens        *int     `json:",omitempty"`
	FrequencyPenalty *float64 `json:",omitempty"`
	PresencePenalty  *float64 `json:",omitempty"`
	ThinkingBudget   *int     `json:",omitempty"`
	Seed             *int     `json:",omitempty"`
}

func isGemini3(model string) bool {
	return len(model) >= 8 && model[:8] == "gemini-3"
}

// Resolve is a pure function: identical Input values always produce a
// byte-identical Bundle (spec invariant P1). It performs no I/O and holds
// no state across calls.
func Resolve(in Input, providers config.ProviderConstraints) Bundle {
	temperature := resolveTemperature(in, providers)
	topP := resolveTopP(in)
	maxTokens := resolveMaxTokens(in)
	freqPenalty := cortex.Clamp(0.3+in.Creativity*0.6, 0, 2)
	presPenalty := cortex.Clamp(in.Surprise*0.8, 0, 2)
	thinkingBudget := resolveThinkingBudget(in.CalibrationHealth)

	bundle := Bundle{
		Temperature:      &temperature,
		TopP:             &topP,
		MaxTokens:        &maxTokens,
		FrequencyPenalty: &freqPenalty,
		PresencePenalty:  &presPenalty,
		ThinkingBudget:   &thinkingBudget,
	}
	if in.Process == System1 && in.Surprise < 0.1 {
		seed := 42
		bundle.Seed = &seed
	}

	return filterByProviderCapability(bundle, in.Model, providers)
}

// resolveTemperature applies the priority ladder: modulator.CLAMP >
// column_override > provider_constraint > brain_state_computation >
// task_ceiling (spec §4.7).
func resolveTemperature(in Input, providers config.ProviderConstraints) float64 {
	if in.ModulatorClamp.Temperature != nil {
		return cortex.Clamp(*in.ModulatorClamp.Temperature, 0, 2)
	}
	if in.ColumnOverride.Temperature != nil {
		return cortex.Clamp(*in.ColumnOverride.Temperature, 0, 2)
	}
	if constraint, ok := providers.Lookup(in.Model); ok && constraint.ForceTemperature != nil {
		return cortex.Clamp(*constraint.ForceTemperature, 0, 2)
	}
	if isGemini3(in.Model) {
		return 1.0
	}

	base := 0.2
	if in.Process == System2 {
		base = 0.6
	}
	temp := base + in.Surprise*0.3 + (1-in.Confidence)*0.2
	switch in.AttentionPriority {
	case AttentionCritical:
		temp -= 0.1
	case AttentionSubconscious:
		temp -= 0.15
	}
	temp += in.Creativity * 0.15

	ceiling, ok := taskCeiling[in.TaskType]
	if !ok {
		ceiling = taskCeiling["default"]
	}
	if constraint, ok := providers.Lookup(in.Model); ok && constraint.MaxTemperature != nil && *constraint.MaxTemperature < ceiling {
		ceiling = *constraint.MaxTemperature
	}
	if temp > ceiling {
		temp = ceiling
	}
	return cortex.Clamp(temp, 0, 2)
}

func resolveTopP(in Input) float64 {
	if in.ModulatorClamp.TopP != nil {
		return cortex.Clamp01(*in.ModulatorClamp.TopP)
	}
	if in.ColumnOverride.TopP != nil {
		return cortex.Clamp01(*in.ColumnOverride.TopP)
	}
	if in.Process == System2 {
		return 0.95
	}
	return 0.85
}

func resolveMaxTokens(in Input) int {
	ratio := in.ResourceTokenRatio
	if ratio <= 0 {
		ratio = 1.0
	}
	if ratio > 2.0 {
		ratio = 2.0
	}
	budget, ok := attentionBudget[in.AttentionPriority]
	if !ok {
		budget = attentionBudget[AttentionNormal]
	}
	return int(float64(budget) * ratio)
}

func resolveThinkingBudget(health string) int {
	switch health {
	case "optimal":
		return 2048
	case "healthy":
		return 4096
	default:
		return 8192
	}
}

// filterByProviderCapability drops any bundle field the model's
// ModelConstraint.SupportedParams excludes. An absent constraint, or one
// with an empty SupportedParams list, means "all supported" (spec §4.7).
func filterByProviderCapability(b Bundle, model string, providers config.ProviderConstraints) Bundle {
	constraint, ok := providers.Lookup(model)
	if !ok || len(constraint.SupportedParams) == 0 {
		return b
	}
	supported := make(map[string]bool, len(constraint.SupportedParams))
	for _, p := range constraint.SupportedParams {
		supported[p] = true
	}
	if !supported["temperature"] {
		b.Temperature = nil
	}
	if !supported["top_p"] {
		b.TopP = nil
	}
	if !supported["max_tokens"] {
		b.MaxTokens = nil
	}
	if !supported["frequency_penalty"] {
		b.FrequencyPenalty = nil
	}
	if !supported["presence_penalty"] {
		b.PresencePenalty = nil
	}
	if !supported["thinking_budget"] {
		b.ThinkingBudget = nil
	}
	if !supported["seed"] {
		b.Seed = nil
	}
	return b
}
