package session

import (
	"time"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/resolver"
)

// GoalSpec is the optional plan a turn installs on the goal tracker (spec
// §6 TurnContext.goal).
type GoalSpec struct {
	Description string
	Steps       []string
}

// TurnContext is everything a collaborator supplies at begin_turn (spec §6).
type TurnContext struct {
	TenantID        cortex.TenantId
	SessionID       cortex.SessionId
	UserID          cortex.UserId
	TaskType        string
	Goal            *GoalSpec
	MessagesDigest  string
	ToolCandidates  []cortex.EntityId
	ModelCandidates []cortex.EntityId
	PriorOutcome    *Observation
}

// Observation is the outcome signal supplied after a turn (spec §6).
type Observation struct {
	Channel   string
	Predicted float64
	Observed  float64
	Success   bool
	Quality   float64
	LatencyMs float64
	Cost      *float64

	// StepDesc/StepOutput feed the goal tracker's VerifyStep when this
	// observation concludes a plan step; both empty means "no goal step
	// attached to this turn".
	StepDesc   string
	StepOutput string

	// EntityID is the tool or model this observation's success/quality
	// credits, driving weight feedback and reputation together.
	EntityID cortex.EntityId
	Kind     string // "tool"|"model"|"behavioral"
	Tier     string // "tier1"|"tier2"|"tier3"|"tier4"
}

// DecisionStep is one entry in the per-session decision trace (spec §3).
type DecisionStep struct {
	SessionID        cortex.SessionId
	StepIndex        int64
	Category         string
	Decision         string
	Confidence       float64
	Reasoning        string
	Alternatives     []string
	WeightInfluences map[string]float64
	GoalAlignment    *float64
	Timestamp        time.Time
}

// ResolveRequest is the turn-local input to Resolve, everything the
// resolver can't derive from state the Session already owns (spec §4.7
// ResolveInput, minus the fields Session fills in itself: process_type,
// surprise, calibration_health, modulator_clamps).
type ResolveRequest struct {
	TaskType             string
	Provider             string
	Model                string
	Creativity           float64
	Verbosity            float64
	Confidence           float64
	AttentionPriority    resolver.AttentionPriority
	ResourceTokenRatio   float64
	ColumnOverride       resolver.ColumnOverride

	// Routing evidence (spec §4.6 RouteContext), beyond what Session
	// already tracks (surprise, goal drift).
	PopulationAgreement float64
	Novelty             float64
	Safety              float64
	ExplicitSystem2     bool
	PreviousStepError   bool
}

// ResolveResult bundles the resolved parameters with the routing decision
// that produced them, so a caller can log or branch on both.
type ResolveResult struct {
	Bundle  resolver.Bundle
	Process resolver.ProcessType
}
