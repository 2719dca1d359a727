// Package config implements cortex's three-layer configuration priority —
// defaults, then environment variables, then functional options — the same
// discipline the teacher framework's core.Config uses, scoped down to the
// options table in spec §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config bundles every recognized option from spec §6's configuration table.
type Config struct {
	Feedback       FeedbackConfig
	Plasticity     PlasticityConfig
	Fusion         FusionConfig
	Reorganization ReorganizationConfig
	Goal           GoalConfig
	Audit          AuditConfig
	Providers      ProviderConstraints
	Logging        LoggingConfig
	Prediction     PredictionConfig
	Reputation     ReputationConfig
}

// FeedbackConfig enables/disables each of the Weight Engine's four feedback
// tiers (spec §4.1) and their per-layer learning rates (spec §6).
type FeedbackConfig struct {
	Tier1Direct      bool `env:"CORTEX_TIER1_DIRECT" default:"true"`
	Tier2UserInsight bool `env:"CORTEX_TIER2_USER_INSIGHT" default:"true"`
	Tier3Enterprise  bool `env:"CORTEX_TIER3_ENTERPRISE" default:"false"`
	Tier4Global      bool `env:"CORTEX_TIER4_GLOBAL" default:"false"`

	BehavioralLR float64 `env:"CORTEX_BEHAVIORAL_LR" default:"0.1"`
	ToolLR       float64 `env:"CORTEX_TOOL_LR" default:"1.0"`
	ModelLR      float64 `env:"CORTEX_MODEL_LR" default:"1.0"`

	// Tier effective-sample weights (k_tier in spec §4.1's Beta update).
	Tier1K float64 `env:"CORTEX_TIER1_K" default:"1.0"`
	Tier2K float64 `env:"CORTEX_TIER2_K" default:"2.0"`
	Tier3K float64 `env:"CORTEX_TIER3_K" default:"4.0"`
	Tier4K float64 `env:"CORTEX_TIER4_K" default:"0.5"`
}

// PlasticityConfig holds the Weight Engine's decay time constants (spec §4.1,
// §6: decay_factor, edge_halflife, disuse_threshold_turns).
type PlasticityConfig struct {
	DecayFactor           float64 `env:"CORTEX_DECAY_FACTOR" default:"0.98"`
	EdgeHalfLife          float64 `env:"CORTEX_EDGE_HALFLIFE" default:"50"`
	DisuseThresholdTurns  int     `env:"CORTEX_DISUSE_THRESHOLD_TURNS" default:"20"`
}

// FusionConfig holds the Cortical Map Reorganizer's merge/split parameters
// (spec §4.2, §6).
type FusionConfig struct {
	MergeThreshold     float64 `env:"CORTEX_MERGE_THRESHOLD" default:"0.6"`
	SplitThreshold      float64 `env:"CORTEX_SPLIT_THRESHOLD" default:"0.2"`
	MergeMinObservations int    `env:"CORTEX_MERGE_MIN_OBSERVATIONS" default:"5"`
	SimilarityExponent   float64 `env:"CORTEX_SIMILARITY_EXPONENT" default:"2.0"`
}

// ReorganizationConfig holds the reorganization trigger parameters
// (spec §4.2, §6: pressure_threshold, periodic_interval).
type ReorganizationConfig struct {
	PressureThreshold float64 `env:"CORTEX_PRESSURE_THRESHOLD" default:"10.0"`
	PeriodicInterval  int     `env:"CORTEX_PERIODIC_INTERVAL" default:"100"`
	SimilarityFloor   float64 `env:"CORTEX_SIMILARITY_FLOOR" default:"0.05"`
}

// GoalConfig holds the Goal Tracker's thresholds (spec §4.4, §6).
type GoalConfig struct {
	LoopThreshold      int     `env:"CORTEX_LOOP_THRESHOLD" default:"3"`
	DriftWarning       float64 `env:"CORTEX_DRIFT_WARNING" default:"0.3"`
	DriftCritical      float64 `env:"CORTEX_DRIFT_CRITICAL" default:"0.6"`
	ProgressStallTurns int     `env:"CORTEX_PROGRESS_STALL_TURNS" default:"5"`
	AlignmentEMARate   float64 `env:"CORTEX_ALIGNMENT_EMA_RATE" default:"0.3"`
	StallEpsilon       float64 `env:"CORTEX_STALL_EPSILON" default:"0.01"`
	RingBufferSize     int     `env:"CORTEX_LOOP_RING_SIZE" default:"16"`
}

// AuditConfig holds the tamper-evident audit log's behavior (spec §4.8, §6).
type AuditConfig struct {
	Enabled       bool  `env:"CORTEX_AUDIT_ENABLED" default:"true"`
	RetentionDays int   `env:"CORTEX_AUDIT_RETENTION_DAYS" default:"90"`
	MaxFileBytes  int64 `env:"CORTEX_AUDIT_MAX_FILE_BYTES" default:"104857600"`
}

// PredictionConfig holds the surprise/calibration tracker's smoothing and
// histogram parameters (spec §4.5).
type PredictionConfig struct {
	SurpriseScale float64 `env:"CORTEX_SURPRISE_SCALE" default:"1.0"`
	SurpriseEMARate float64 `env:"CORTEX_SURPRISE_EMA_RATE" default:"0.2"`
	CalibrationBins int   `env:"CORTEX_CALIBRATION_BINS" default:"10"`
}

// ReputationConfig holds the Dual-Process Router's trust/quarantine
// parameters (spec §4.6).
type ReputationConfig struct {
	TrustAlpha         float64       `env:"CORTEX_TRUST_ALPHA" default:"0.2"`
	ConsistencyBeta    float64       `env:"CORTEX_CONSISTENCY_BETA" default:"0.1"`
	QuarantineAfterK   int           `env:"CORTEX_QUARANTINE_AFTER_K" default:"3"`
	QuarantineBase     time.Duration `env:"CORTEX_QUARANTINE_BASE" default:"30s"`
	ShapleyNormalizer  float64       `env:"CORTEX_SHAPLEY_NORMALIZER" default:"1.0"`
	NashUtilityRate    float64       `env:"CORTEX_NASH_UTILITY_RATE" default:"0.2"`
	NashShiftRate      float64       `env:"CORTEX_NASH_SHIFT_RATE" default:"0.1"`
	TruthfulNormalizer float64       `env:"CORTEX_TRUTHFUL_NORMALIZER" default:"1.0"`
}

// ModelConstraint is one entry of the provider_constraints map (spec §6):
// a per-model parameter override applied at the provider_constraint tier of
// the resolver's priority ladder (spec §4.7).
type ModelConstraint struct {
	ForceTemperature   *float64
	MaxTemperature     *float64
	SupportedParams    []string // empty means "all supported"
}

// ProviderConstraints maps a model name (or a glob-style prefix ending in
// "*", e.g. "gemini-3*") to its ModelConstraint.
type ProviderConstraints map[string]ModelConstraint

// Lookup finds the constraint for model, preferring an exact match and
// falling back to the longest matching "prefix*" entry.
func (p ProviderConstraints) Lookup(model string) (ModelConstraint, bool) {
	if c, ok := p[model]; ok {
		return c, true
	}
	best := ""
	var bestConstraint ModelConstraint
	found := false
	for key, c := range p {
		if !strings.HasSuffix(key, "*") {
			continue
		}
		prefix := strings.TrimSuffix(key, "*")
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best, bestConstraint, found = prefix, c, true
		}
	}
	return bestConstraint, found
}

// LoggingConfig selects and configures the active Logger backend.
type LoggingConfig struct {
	Backend string `env:"CORTEX_LOG_BACKEND" default:"json"` // json|text|zap
	Level   string `env:"CORTEX_LOG_LEVEL" default:"info"`
	Output  string `env:"CORTEX_LOG_OUTPUT" default:"stdout"`
}

// Option is a functional option applied after defaults and environment
// variables, mirroring the teacher framework's Option = func(*Config) error.
type Option func(*Config) error

// Default returns spec-conformant defaults for every option in §6's table.
func Default() *Config {
	return &Config{
		Feedback: FeedbackConfig{
			Tier1Direct: true, Tier2UserInsight: true,
			BehavioralLR: 0.1, ToolLR: 1.0, ModelLR: 1.0,
			Tier1K: 1.0, Tier2K: 2.0, Tier3K: 4.0, Tier4K: 0.5,
		},
		Plasticity: PlasticityConfig{
			DecayFactor: 0.98, EdgeHalfLife: 50, DisuseThresholdTurns: 20,
		},
		Fusion: FusionConfig{
			MergeThreshold: 0.6, SplitThreshold: 0.2,
			MergeMinObservations: 5, SimilarityExponent: 2.0,
		},
		Reorganization: ReorganizationConfig{
			PressureThreshold: 10.0, PeriodicInterval: 100, SimilarityFloor: 0.05,
		},
		Goal: GoalConfig{
			LoopThreshold: 3, DriftWarning: 0.3, DriftCritical: 0.6,
			ProgressStallTurns: 5, AlignmentEMARate: 0.3, StallEpsilon: 0.01,
			RingBufferSize: 16,
		},
		Audit: AuditConfig{
			Enabled: true, RetentionDays: 90, MaxFileBytes: 100 << 20,
		},
		Providers: ProviderConstraints{
			"gemini-3*": {ForceTemperature: floatPtr(1.0)},
		},
		Logging: LoggingConfig{Backend: "json", Level: "info", Output: "stdout"},
		Prediction: PredictionConfig{
			SurpriseScale: 1.0, SurpriseEMARate: 0.2, CalibrationBins: 10,
		},
		Reputation: ReputationConfig{
			TrustAlpha: 0.2, ConsistencyBeta: 0.1,
			QuarantineAfterK: 3, QuarantineBase: 30 * time.Second,
			ShapleyNormalizer: 1.0, NashUtilityRate: 0.2, NashShiftRate: 0.1,
			TruthfulNormalizer: 1.0,
		},
	}
}

// New builds a Config from defaults, then environment variables, then opts,
// validating the result.
func New(opts ...Option) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv overrides defaults from the environment. Only the variables
// read below are consulted; the env tags on the other fields are not read.
func (c *Config) loadFromEnv() error {
	var err error
	c.Feedback.Tier1Direct = envBool("CORTEX_TIER1_DIRECT", c.Feedback.Tier1Direct)
	c.Feedback.Tier2UserInsight = envBool("CORTEX_TIER2_USER_INSIGHT", c.Feedback.Tier2UserInsight)
	c.Feedback.Tier3Enterprise = envBool("CORTEX_TIER3_ENTERPRISE", c.Feedback.Tier3Enterprise)
	c.Feedback.Tier4Global = envBool("CORTEX_TIER4_GLOBAL", c.Feedback.Tier4Global)
	if c.Feedback.BehavioralLR, err = envFloat("CORTEX_BEHAVIORAL_LR", c.Feedback.BehavioralLR); err != nil {
		return err
	}
	if c.Plasticity.DecayFactor, err = envFloat("CORTEX_DECAY_FACTOR", c.Plasticity.DecayFactor); err != nil {
		return err
	}
	if c.Fusion.MergeThreshold, err = envFloat("CORTEX_MERGE_THRESHOLD", c.Fusion.MergeThreshold); err != nil {
		return err
	}
	if c.Fusion.SplitThreshold, err = envFloat("CORTEX_SPLIT_THRESHOLD", c.Fusion.SplitThreshold); err != nil {
		return err
	}
	if c.Reorganization.PressureThreshold, err = envFloat("CORTEX_PRESSURE_THRESHOLD", c.Reorganization.PressureThreshold); err != nil {
		return err
	}
	if c.Goal.LoopThreshold, err = envInt("CORTEX_LOOP_THRESHOLD", c.Goal.LoopThreshold); err != nil {
		return err
	}
	if c.Goal.DriftWarning, err = envFloat("CORTEX_DRIFT_WARNING", c.Goal.DriftWarning); err != nil {
		return err
	}
	if c.Goal.DriftCritical, err = envFloat("CORTEX_DRIFT_CRITICAL", c.Goal.DriftCritical); err != nil {
		return err
	}
	if c.Goal.ProgressStallTurns, err = envInt("CORTEX_PROGRESS_STALL_TURNS", c.Goal.ProgressStallTurns); err != nil {
		return err
	}
	c.Audit.Enabled = envBool("CORTEX_AUDIT_ENABLED", c.Audit.Enabled)
	if c.Audit.RetentionDays, err = envInt("CORTEX_AUDIT_RETENTION_DAYS", c.Audit.RetentionDays); err != nil {
		return err
	}
	if c.Prediction.SurpriseScale, err = envFloat("CORTEX_SURPRISE_SCALE", c.Prediction.SurpriseScale); err != nil {
		return err
	}
	if c.Reputation.QuarantineAfterK, err = envInt("CORTEX_QUARANTINE_AFTER_K", c.Reputation.QuarantineAfterK); err != nil {
		return err
	}
	if v := os.Getenv("CORTEX_LOG_BACKEND"); v != "" {
		c.Logging.Backend = v
	}
	if v := os.Getenv("CORTEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate enforces the invariants spec §3 assumes of every config-derived
// scalar: learning rates and decay factors lie in (0, 1], thresholds in
// [0, 1] where the spec calls them probabilities.
func (c *Config) Validate() error {
	if c.Feedback.BehavioralLR <= 0 || c.Feedback.BehavioralLR > 1 {
		return fmt.Errorf("config: behavioral_lr must be in (0,1], got %v", c.Feedback.BehavioralLR)
	}
	if c.Plasticity.DecayFactor <= 0 || c.Plasticity.DecayFactor > 1 {
		return fmt.Errorf("config: decay_factor must be in (0,1], got %v", c.Plasticity.DecayFactor)
	}
	if c.Fusion.MergeThreshold < 0 || c.Fusion.MergeThreshold > 1 {
		return fmt.Errorf("config: merge_threshold must be in [0,1], got %v", c.Fusion.MergeThreshold)
	}
	if c.Fusion.SplitThreshold < 0 || c.Fusion.SplitThreshold > c.Fusion.MergeThreshold {
		return fmt.Errorf("config: split_threshold must be in [0, merge_threshold], got %v", c.Fusion.SplitThreshold)
	}
	if c.Goal.LoopThreshold < 1 {
		return fmt.Errorf("config: loop_threshold must be >= 1, got %d", c.Goal.LoopThreshold)
	}
	if c.Goal.DriftWarning < 0 || c.Goal.DriftWarning > c.Goal.DriftCritical {
		return fmt.Errorf("config: drift_warning must be in [0, drift_critical], got %v", c.Goal.DriftWarning)
	}
	return nil
}

// WithTier3Enterprise toggles the enterprise feedback tier.
func WithTier3Enterprise(enabled bool) Option {
	return func(c *Config) error { c.Feedback.Tier3Enterprise = enabled; return nil }
}

// WithTier4Global toggles the global feedback tier.
func WithTier4Global(enabled bool) Option {
	return func(c *Config) error { c.Feedback.Tier4Global = enabled; return nil }
}

// WithProviderConstraint registers or overrides a model's constraint.
func WithProviderConstraint(model string, c ModelConstraint) Option {
	return func(cfg *Config) error {
		if cfg.Providers == nil {
			cfg.Providers = ProviderConstraints{}
		}
		cfg.Providers[model] = c
		return nil
	}
}

func floatPtr(v float64) *float64 { return &v }

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid float for %s: %w", key, err)
	}
	return f, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid int for %s: %w", key, err)
	}
	return i, nil
}
