// Package persistence implements the file- and Redis-backed collaborators
// that hold the state spec §6 describes as persisted: per-tenant audit
// logs, per-user weight snapshots, and per-session territory snapshots. It
// is explicitly an external collaborator (spec §1, §5): no package under
// cortex/, cortex/weights, cortex/territory or cortex/audit imports this
// one. session.Session (cortex/session) is the only caller, at its
// begin_turn/end_turn boundaries.
package persistence

import (
	"context"
	"time"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/audit"
	"github.com/QuestoM/cortex-docs-sub005/cortex/territory"
	"github.com/QuestoM/cortex-docs-sub005/cortex/weights"
)

// Store is the collaborator surface session.Session talks to. Both the
// filesystem and Redis backends implement it so a caller can swap between
// them without touching anything upstream.
type Store interface {
	AppendAudit(ctx context.Context, tenant cortex.TenantId, date string, e audit.Entry) error
	LoadAudit(ctx context.Context, tenant cortex.TenantId, date string) ([]audit.Entry, error)

	SaveWeights(ctx context.Context, tenant cortex.TenantId, user cortex.UserId, snap weights.Snapshot) error
	LoadWeights(ctx context.Context, tenant cortex.TenantId, user cortex.UserId) (weights.Snapshot, bool, error)

	SaveTerritories(ctx context.Context, tenant cortex.TenantId, session cortex.SessionId, alloc map[cortex.EntityId]territory.Allocation) error
	LoadTerritories(ctx context.Context, tenant cortex.TenantId, session cortex.SessionId) (map[cortex.EntityId]territory.Allocation, bool, error)
}

// DateKey formats t the way audit log filenames/keys are partitioned
// (spec §6: audit/<tenant>/<date>.log), one shard per UTC calendar day.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func validTenant(op string, tenant cortex.TenantId) error {
	if !tenant.Valid() {
		return cortex.NewFault(op, cortex.InvalidArgument, string(tenant), "invalid tenant id")
	}
	return nil
}
