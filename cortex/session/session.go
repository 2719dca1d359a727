// Package session implements Session (spec §5): the orchestrator
// that ties one instance of every stateful component — Weight Engine,
// Cortical Map Reorganizer, Targeted Modulator, Goal Tracker, Prediction/
// Calibration Tracker, Reputation, and Tamper-evident Audit Log — to a
// single tenant/session pair, and exposes the synchronous
// begin_turn / resolve / end_turn(outcome) boundaries the rest of the
// runtime calls through. It is the only package that calls into
// cortex/persistence and cortex/telemetry, both external collaborators
// per spec §1.
//
// Session lives in its own package, rather than the root cortex package
// named in the expanded module layout, because every component package
// (cortex/weights, cortex/territory, ...) already imports the root cortex
// package for its shared ids/Fault/clamp helpers; a Session living there
// too would close an import cycle back through those same packages.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/audit"
	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
	"github.com/QuestoM/cortex-docs-sub005/cortex/goal"
	"github.com/QuestoM/cortex-docs-sub005/cortex/logger"
	"github.com/QuestoM/cortex-docs-sub005/cortex/modulator"
	"github.com/QuestoM/cortex-docs-sub005/cortex/persistence"
	"github.com/QuestoM/cortex-docs-sub005/cortex/predict"
	"github.com/QuestoM/cortex-docs-sub005/cortex/resolver"
	"github.com/QuestoM/cortex-docs-sub005/cortex/router"
	"github.com/QuestoM/cortex-docs-sub005/cortex/telemetry"
	"github.com/QuestoM/cortex-docs-sub005/cortex/territory"
	"github.com/QuestoM/cortex-docs-sub005/cortex/weights"
)

// Options configures the collaborators a Session defers to. All fields are
// optional; nil/zero values fall back to defaults (spec §1, §5: Config
// defaults to config.Default(), Logger to the backend named by
// Config.Logging, Telemetry to NoOp, Store to none — a Session with no
// Store simply never persists, which is valid for a purely in-memory run).
type Options struct {
	Config    *config.Config
	Logger    logger.Logger
	Telemetry telemetry.Telemetry
	Store     persistence.Store
	LLMVerify goal.LLMVerify
}

// Session owns every stateful component for exactly one (tenant, session)
// pair (spec §3 "Ownership"). It is not safe to share across goroutines
// concurrently with an open turn; the single-threaded-per-session model
// (spec §5) is enforced by turnMu.
type Session struct {
	tenant  cortex.TenantId
	session cortex.SessionId

	cfg   *config.Config
	log   logger.Logger
	tel   telemetry.Telemetry
	store persistence.Store

	weightsEngine *weights.Engine
	territory     *territory.Reorganizer
	modulator     *modulator.Modulator
	goalTracker   *goal.Tracker
	predictor     *predict.Tracker
	reputation    *router.Reputation
	nash          *router.NashRouter
	truthful      *router.TruthfulScorer
	auditLog      *audit.Log

	turnMu      sync.Mutex
	decisionMu  sync.Mutex
	turnSeq   int64
	decisions []DecisionStep
	lastDrift float64

	open    bool
	current TurnContext
}

// New constructs a Session for one tenant/session pair. opts may be the
// zero value; every collaborator then defaults as documented on Options.
func New(tenant cortex.TenantId, sess cortex.SessionId, opts Options) (*Session, error) {
	if !tenant.Valid() {
		return nil, cortex.NewFault("session.New", cortex.InvalidArgument, string(tenant), "invalid tenant id")
	}
	if !sess.Valid() {
		return nil, cortex.NewFault("session.New", cortex.InvalidArgument, string(sess), "invalid session id")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = loggerFromConfig(cfg.Logging)
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.NoOp{}
	}

	s := &Session{
		tenant:        tenant,
		session:       sess,
		cfg:           cfg,
		log:           log,
		tel:           tel,
		store:         opts.Store,
		weightsEngine: weights.New(cfg.Feedback, cfg.Plasticity, log),
		territory:     territory.New(cfg.Fusion, cfg.Reorganization, cfg.Plasticity, log),
		modulator:     modulator.New(log),
		goalTracker:   goal.New(cfg.Goal, opts.LLMVerify),
		predictor:     predict.New(cfg.Prediction.SurpriseScale, cfg.Prediction.SurpriseEMARate, cfg.Prediction.CalibrationBins),
		reputation: router.NewReputation(
			cfg.Reputation.TrustAlpha, cfg.Reputation.ConsistencyBeta,
			cfg.Reputation.QuarantineAfterK, cfg.Reputation.QuarantineBase,
		),
		nash:     router.NewNashRouter(cfg.Reputation.NashUtilityRate, cfg.Reputation.NashShiftRate),
		truthful: router.NewTruthfulScorer(cfg.Reputation.TruthfulNormalizer),
		auditLog: audit.New(),
	}
	return s, nil
}

// BeginTurn opens a new turn: it advances the modulator clock (spec §5
// ordering guarantee 1, "tick occurs before any weight read") and installs
// a new goal plan if the caller supplied one. It fails if a turn is
// already open on this session handle (single-threaded-per-session, spec
// §5) or if ctx doesn't match this Session's tenant/session.
func (s *Session) BeginTurn(ctx TurnContext) error {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	if s.open {
		return cortex.WrapFault("session.BeginTurn", cortex.ConflictingState, string(s.session), cortex.ErrTurnAlreadyOpen)
	}
	if ctx.TenantID != s.tenant || ctx.SessionID != s.session {
		return cortex.NewFault("session.BeginTurn", cortex.InvalidArgument, string(ctx.SessionID), "turn context does not match this session")
	}

	s.modulator.Tick(time.Now())
	if ctx.Goal != nil {
		s.goalTracker.SetPlan(ctx.Goal.Description, ctx.Goal.Steps)
		s.modulator.Clear(modulator.ScopeGoal, s.goalTracker.GoalVersion())
	}

	s.open = true
	s.current = ctx
	return nil
}

// Resolve computes the dual-process routing decision and the resolved
// parameter bundle for the currently open turn (spec §4.6, §4.7). It
// observes every modulation added prior to this call (spec §5 ordering
// guarantee 2) but mutates no component state itself — Resolve is safe to
// call more than once per turn, e.g. to re-resolve after a retry.
func (s *Session) Resolve(req ResolveRequest) (ResolveResult, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	if !s.open {
		return ResolveResult{}, cortex.WrapFault("session.Resolve", cortex.ConflictingState, string(s.session), cortex.ErrTurnNotStarted)
	}

	surprise := s.predictor.SurpriseEMA(req.TaskType)
	routeCtx := router.RouteContext{
		Surprise:            surprise,
		PopulationAgreement: req.PopulationAgreement,
		Novelty:             req.Novelty,
		Safety:              req.Safety,
		ExplicitRequest:     req.ExplicitSystem2,
		PreviousStepError:   req.PreviousStepError,
		GoalDrift:           s.lastDrift,
	}
	system := router.Route(routeCtx)

	process := resolver.System1
	if system == router.System2 {
		process = resolver.System2
	}

	clamp := resolver.ModulatorClamp{}
	if v, ok := s.modulator.ActiveClamp("temperature"); ok {
		clamp.Temperature = &v
	}
	if v, ok := s.modulator.ActiveClamp("top_p"); ok {
		clamp.TopP = &v
	}

	in := resolver.Input{
		TaskType:           req.TaskType,
		Provider:           req.Provider,
		Model:              req.Model,
		Process:            process,
		Surprise:           surprise,
		CalibrationHealth:  string(s.predictor.Calibration().Health),
		Confidence:         req.Confidence,
		AttentionPriority:  req.AttentionPriority,
		Creativity:         req.Creativity,
		Verbosity:          req.Verbosity,
		ResourceTokenRatio: req.ResourceTokenRatio,
		ColumnOverride:     req.ColumnOverride,
		ModulatorClamp:     clamp,
	}
	start := time.Now()
	bundle := resolver.Resolve(in, s.cfg.Providers)
	telemetry.ResolverLatency(s.tel, req.Model, time.Since(start))

	s.appendDecision("routing", string(system), surprise, nil)
	return ResolveResult{Bundle: bundle, Process: process}, nil
}

// EndTurn applies every outcome-side mutation as one block (spec §5
// ordering guarantee 3): weight feedback, reputation, territory usage, goal
// verification, calibration, and exactly one audit entry. If obs is nil the
// turn is treated as abandoned: no mutation occurs and state is left
// exactly as it was before BeginTurn, beyond the already-applied tick
// (spec §5 "Cancellation & timeouts"). Every precondition that could make a
// sub-step fail is checked up front, before any collaborator is mutated, so
// a rejected observation (bad kind, out-of-range quality, a step verified
// with no plan set) leaves every collaborator exactly as it was — either
// the whole block applies or none of it becomes visible.
func (s *Session) EndTurn(ctx context.Context, obs *Observation) error {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	if !s.open {
		return cortex.WrapFault("session.EndTurn", cortex.ConflictingState, string(s.session), cortex.ErrTurnNotStarted)
	}
	current := s.current
	s.open = false
	s.current = TurnContext{}

	if obs == nil {
		return nil
	}

	if obs.EntityID != "" && obs.Kind != "" && !weights.ValidKind(obs.Kind) {
		return cortex.NewFault("session.EndTurn", cortex.InvalidArgument, obs.Kind, "unknown weight kind: "+obs.Kind)
	}
	if obs.Channel != "" && (obs.Quality < 0 || obs.Quality > 1) {
		return cortex.NewFault("session.EndTurn", cortex.InvalidArgument, obs.Channel, "quality must be in [0,1]")
	}

	// VerifyStep is the last remaining fallible step (it errors only when
	// no plan was ever set) and, unlike the checks above, it also mutates
	// goal-tracker state on success. Run it before any weight/reputation/
	// territory/audit mutation so an error here still leaves those
	// collaborators untouched.
	var goalResult goal.StepResult
	haveGoalResult := false
	if obs.StepDesc != "" {
		result, err := s.goalTracker.VerifyStep(obs.StepDesc, obs.StepOutput)
		if err != nil {
			return cortex.WrapFault("session.EndTurn", cortex.ConflictingState, "", err)
		}
		goalResult = result
		haveGoalResult = true
	}

	outcome := "failure"
	if obs.Success {
		outcome = "success"
	}

	if obs.EntityID != "" && obs.Kind != "" {
		tier := tierFromString(obs.Tier)
		weightOutcome := weights.Failure
		if obs.Success {
			weightOutcome = weights.Success
		}
		if err := s.weightsEngine.ApplyFeedback(obs.Kind, string(obs.EntityID), weightOutcome, tier); err != nil {
			return cortex.WrapFault("session.EndTurn", cortex.ConflictingState, string(obs.EntityID), err)
		}
		consistency := 0.0
		if obs.Success {
			consistency = 1.0
		}
		s.reputation.RecordOutcome(obs.EntityID, obs.Success, consistency)
		s.tel.RecordMetric("cortex.weights.updated", obs.Quality, map[string]string{"kind": obs.Kind, "entity": string(obs.EntityID)})
	}

	if len(current.ToolCandidates) > 0 {
		s.territory.RecordUsage(current.ToolCandidates, obs.Quality, obs.Success)
	}

	if obs.Channel != "" {
		if _, err := s.predictor.Observe(obs.Channel, obs.Predicted, obs.Observed); err != nil {
			return cortex.WrapFault("session.EndTurn", cortex.InvalidArgument, obs.Channel, err)
		}
		if err := s.predictor.RecordCalibration(obs.Quality, obs.Success); err != nil {
			return cortex.WrapFault("session.EndTurn", cortex.InvalidArgument, obs.Channel, err)
		}
	}

	if haveGoalResult {
		s.lastDrift = goalResult.Drift
		align := goalResult.Alignment
		s.appendDecision("goal", string(goalResult.Action), goalResult.Alignment, &align)
	}

	entry := audit.Entry{
		TenantID:  current.TenantID,
		SessionID: current.SessionID,
		UserID:    current.UserID,
		Type:      "turn_outcome",
		Severity:  "info",
		Action:    "end_turn",
		Details:   map[string]interface{}{"task_type": current.TaskType, "entity": string(obs.EntityID)},
		Outcome:   outcome,
	}
	appended, err := s.auditLog.Append(entry)
	if err != nil {
		return cortex.WrapFault("session.EndTurn", cortex.ConflictingState, string(current.SessionID), err)
	}

	if s.store != nil {
		if err := s.store.AppendAudit(ctx, s.tenant, persistence.DateKey(appended.Timestamp), appended); err != nil {
			s.log.Warn("persistence append_audit failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if s.territory.TotalTerritory() > 0 {
		s.territory.Reorganize()
	}

	return nil
}

func (s *Session) appendDecision(category, decision string, confidence float64, alignment *float64) {
	s.decisionMu.Lock()
	defer s.decisionMu.Unlock()
	s.turnSeq++
	s.decisions = append(s.decisions, DecisionStep{
		SessionID:     s.session,
		StepIndex:     s.turnSeq,
		Category:      category,
		Decision:      decision,
		Confidence:    cortex.Clamp01(confidence),
		GoalAlignment: alignment,
		Timestamp:     time.Now(),
	})
}

// DecisionTrace returns every decision recorded so far this session.
func (s *Session) DecisionTrace() []DecisionStep {
	s.decisionMu.Lock()
	defer s.decisionMu.Unlock()
	return append([]DecisionStep(nil), s.decisions...)
}

// WeightSnapshot returns a deep copy of the Weight Engine's current state.
func (s *Session) WeightSnapshot() weights.Snapshot { return s.weightsEngine.GetSnapshot() }

// TerritoryExport returns a deep copy of the current territory allocations.
func (s *Session) TerritoryExport() map[cortex.EntityId]territory.Allocation {
	return s.territory.Export()
}

// CalibrationReport returns the current calibration health report.
func (s *Session) CalibrationReport() predict.CalibrationReport { return s.predictor.Calibration() }

// AvailableTools filters candidates through the reputation quarantine list
// (spec invariant R1).
func (s *Session) AvailableTools(candidates []cortex.EntityId) []cortex.EntityId {
	return s.reputation.GetAvailableTools(candidates)
}

// AuditTail returns the last n audit entries.
func (s *Session) AuditTail(n int) []audit.Entry { return s.auditLog.Tail(n) }

// VerifyAuditIntegrity recomputes the audit hash chain (spec invariant A1).
func (s *Session) VerifyAuditIntegrity() audit.IntegrityReport {
	return s.auditLog.VerifyIntegrityDetailed()
}

// Weights, Territory, Modulator, Goal, Predictor, Reputation, Nash and
// Truthful expose the underlying collaborators directly for callers (e.g.
// cmd/cortex-sim) that need finer control than the turn boundary API, such
// as adding a modulation or declaring a tool's capability vector.
func (s *Session) Weights() *weights.Engine          { return s.weightsEngine }
func (s *Session) Territory() *territory.Reorganizer { return s.territory }
func (s *Session) Modulator() *modulator.Modulator   { return s.modulator }
func (s *Session) Goal() *goal.Tracker               { return s.goalTracker }
func (s *Session) Predictor() *predict.Tracker       { return s.predictor }
func (s *Session) Reputation() *router.Reputation    { return s.reputation }
func (s *Session) Nash() *router.NashRouter          { return s.nash }
func (s *Session) Truthful() *router.TruthfulScorer  { return s.truthful }

// loggerFromConfig builds the Logger a Session defaults to when no
// Options.Logger is supplied, dispatching on cfg.Backend ("json", "text" or
// "zap"). A Zap build failure falls back to the JSON Production logger
// rather than leaving the session unable to start.
func loggerFromConfig(cfg config.LoggingConfig) logger.Logger {
	switch cfg.Backend {
	case "zap":
		if z, err := logger.NewZap(strings.EqualFold(cfg.Level, "debug")); err == nil {
			return z
		}
		return logger.NewProduction(logger.ProductionConfig{Level: cfg.Level, Format: "json", Output: cfg.Output})
	case "text":
		return logger.NewProduction(logger.ProductionConfig{Level: cfg.Level, Format: "text", Output: cfg.Output})
	default:
		return logger.NewProduction(logger.ProductionConfig{Level: cfg.Level, Format: "json", Output: cfg.Output})
	}
}

func tierFromString(s string) weights.Tier {
	switch s {
	case "tier2":
		return weights.Tier2UserInsight
	case "tier3":
		return weights.Tier3Enterprise
	case "tier4":
		return weights.Tier4Global
	default:
		return weights.Tier1Direct
	}
}
