package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/config"
	"github.com/QuestoM/cortex-docs-sub005/cortex/modulator"
	"github.com/QuestoM/cortex-docs-sub005/cortex/persistence"
	"github.com/QuestoM/cortex-docs-sub005/cortex/resolver"
	"github.com/QuestoM/cortex-docs-sub005/cortex/security"
	"github.com/QuestoM/cortex-docs-sub005/cortex/session"
	"github.com/QuestoM/cortex-docs-sub005/cortex/telemetry"
)

func newRunCmd() *cobra.Command {
	var (
		tenant      string
		sessionID   string
		user        string
		taskType    string
		provider    string
		model       string
		tools       []string
		goalDesc    string
		goalSteps   []string
		clampTemp   float64
		hasClamp    bool
		storeDir    string
		masterKey   string
		logBackend  string
		otelStdout  bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play one begin_turn / resolve / end_turn cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			hasClamp = cmd.Flags().Changed("clamp-temperature")

			var store persistence.Store
			if storeDir != "" {
				keys := security.NewKeyDeriver([]byte(masterKey))
				store = persistence.NewFileStoreWithKeys(storeDir, keys)
			}

			cfg := config.Default()
			cfg.Logging.Backend = logBackend

			var tel telemetry.Telemetry
			if otelStdout {
				t, shutdown, err := newStdoutTelemetry()
				if err != nil {
					return err
				}
				defer shutdown()
				tel = t
			}

			sess, err := session.New(cortex.TenantId(tenant), cortex.SessionId(sessionID), session.Options{
				Config:    cfg,
				Store:     store,
				Telemetry: tel,
			})
			if err != nil {
				return err
			}

			if hasClamp {
				sess.Modulator().Add(modulator.Modulation{
					Target:     "temperature",
					Type:       modulator.Clamp,
					Scope:      modulator.ScopeSession,
					Source:     "user",
					Priority:   5,
					ClampValue: clampTemp,
				})
			}

			toolIDs := make([]cortex.EntityId, len(tools))
			for i, t := range tools {
				toolIDs[i] = cortex.EntityId(t)
			}

			turn := session.TurnContext{
				TenantID:       cortex.TenantId(tenant),
				SessionID:      cortex.SessionId(sessionID),
				UserID:         cortex.UserId(user),
				TaskType:       taskType,
				ToolCandidates: toolIDs,
			}
			if goalDesc != "" {
				turn.Goal = &session.GoalSpec{Description: goalDesc, Steps: goalSteps}
			}

			if err := sess.BeginTurn(turn); err != nil {
				return err
			}

			result, err := sess.Resolve(session.ResolveRequest{
				TaskType:          taskType,
				Provider:          provider,
				Model:             model,
				Confidence:        0.75,
				AttentionPriority: resolver.AttentionNormal,
			})
			if err != nil {
				return err
			}

			var obs *session.Observation
			if len(toolIDs) > 0 {
				obs = &session.Observation{
					EntityID: toolIDs[0],
					Kind:     "tool",
					Success:  true,
					Quality:  0.8,
					Channel:  taskType,
					Predicted: 0.5,
					Observed:  0.6,
				}
			}
			if err := sess.EndTurn(context.Background(), obs); err != nil {
				return err
			}

			out := map[string]interface{}{
				"process":        result.Process,
				"bundle":         result.Bundle,
				"decision_trace": sess.DecisionTrace(),
				"audit_tail":     sess.AuditTail(10),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "process=%v bundle=%+v\n", result.Process, result.Bundle)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "demo-tenant", "tenant id")
	cmd.Flags().StringVar(&sessionID, "session", "demo-session", "session id")
	cmd.Flags().StringVar(&user, "user", "demo-user", "user id")
	cmd.Flags().StringVar(&taskType, "task-type", "coding", "task type")
	cmd.Flags().StringVar(&provider, "provider", "anthropic", "provider name")
	cmd.Flags().StringVar(&model, "model", "claude", "model name")
	cmd.Flags().StringSliceVar(&tools, "tool", nil, "candidate tool entity id (repeatable)")
	cmd.Flags().StringVar(&goalDesc, "goal", "", "goal description, installs a plan if set")
	cmd.Flags().StringSliceVar(&goalSteps, "goal-step", nil, "goal plan step (repeatable)")
	cmd.Flags().Float64Var(&clampTemp, "clamp-temperature", 0, "install a user CLAMP modulation on temperature")
	cmd.Flags().StringVar(&storeDir, "store-dir", "", "filesystem persistence base directory; empty means no persistence")
	cmd.Flags().StringVar(&masterKey, "master-key", "cortex-sim-demo-master-key", "process-wide master key used to derive per-tenant storage keys (spec §5)")
	cmd.Flags().StringVar(&logBackend, "log-backend", "json", "logger backend: json|text|zap")
	cmd.Flags().BoolVar(&otelStdout, "otel-stdout", false, "emit OpenTelemetry traces and metrics to stdout instead of discarding them")
	cmd.Flags().BoolVar(&asJSON, "json", true, "print JSON output")

	return cmd
}
