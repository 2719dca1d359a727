package persistence

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/audit"
	"github.com/QuestoM/cortex-docs-sub005/cortex/security"
	"github.com/QuestoM/cortex-docs-sub005/cortex/territory"
	"github.com/QuestoM/cortex-docs-sub005/cortex/weights"
)

// RedisStore is the shared-by-tenant-sessions backend (spec §5 "shared
// resources"): audit entries append to a per-tenant-per-day list, weight
// and territory snapshots are whole-value JSON strings keyed per
// tenant+user / tenant+session, mirroring the key-pattern convention of the
// teacher's RedisTaskStore (`{prefix}:{kind}:{id}`).
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	keys      *security.KeyDeriver
}

// RedisStoreConfig configures a RedisStore. KeyPrefix defaults to
// "cortex" when empty. Keys, when set, namespaces every tenant segment of
// every Redis key behind a derived key instead of the raw tenant id (spec
// §5's per-tenant key material), the same protection FileStore gets from
// NewFileStoreWithKeys.
type RedisStoreConfig struct {
	KeyPrefix string
	Keys      *security.KeyDeriver
}

// NewRedisStore wraps an already-connected redis.Client.
func NewRedisStore(client *redis.Client, cfg RedisStoreConfig) *RedisStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "cortex"
	}
	return &RedisStore{client: client, keyPrefix: prefix, keys: cfg.Keys}
}

// tenantSegment returns the Redis key segment for tenant: the raw tenant id,
// or its derived-key hex prefix when the store was configured with Keys.
func (r *RedisStore) tenantSegment(tenant cortex.TenantId) string {
	if r.keys == nil {
		return string(tenant)
	}
	key, err := r.keys.DeriveTenantKey(tenant)
	if err != nil {
		return string(tenant)
	}
	return hex.EncodeToString(key)[:16]
}

func (r *RedisStore) auditKey(tenant cortex.TenantId, date string) string {
	return fmt.Sprintf("%s:audit:%s:%s", r.keyPrefix, r.tenantSegment(tenant), date)
}

func (r *RedisStore) weightsKey(tenant cortex.TenantId, user cortex.UserId) string {
	return fmt.Sprintf("%s:weights:%s:%s", r.keyPrefix, r.tenantSegment(tenant), user)
}

func (r *RedisStore) territoriesKey(tenant cortex.TenantId, session cortex.SessionId) string {
	return fmt.Sprintf("%s:territories:%s:%s", r.keyPrefix, r.tenantSegment(tenant), session)
}

func (r *RedisStore) AppendAudit(ctx context.Context, tenant cortex.TenantId, date string, e audit.Entry) error {
	if err := validTenant("persistence.AppendAudit", tenant); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return cortex.WrapFault("persistence.AppendAudit", cortex.InvalidArgument, string(tenant), err)
	}
	if err := r.client.RPush(ctx, r.auditKey(tenant, date), data).Err(); err != nil {
		return cortex.WrapFault("persistence.AppendAudit", cortex.ConflictingState, string(tenant), err)
	}
	return nil
}

func (r *RedisStore) LoadAudit(ctx context.Context, tenant cortex.TenantId, date string) ([]audit.Entry, error) {
	if err := validTenant("persistence.LoadAudit", tenant); err != nil {
		return nil, err
	}
	raw, err := r.client.LRange(ctx, r.auditKey(tenant, date), 0, -1).Result()
	if err != nil {
		return nil, cortex.WrapFault("persistence.LoadAudit", cortex.ConflictingState, string(tenant), err)
	}
	out := make([]audit.Entry, 0, len(raw))
	for _, s := range raw {
		var e audit.Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, cortex.WrapFault("persistence.LoadAudit", cortex.ConflictingState, string(tenant), err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisStore) SaveWeights(ctx context.Context, tenant cortex.TenantId, user cortex.UserId, snap weights.Snapshot) error {
	if err := validTenant("persistence.SaveWeights", tenant); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return cortex.WrapFault("persistence.SaveWeights", cortex.InvalidArgument, string(tenant), err)
	}
	if err := r.client.Set(ctx, r.weightsKey(tenant, user), data, 0).Err(); err != nil {
		return cortex.WrapFault("persistence.SaveWeights", cortex.ConflictingState, string(tenant), err)
	}
	return nil
}

func (r *RedisStore) LoadWeights(ctx context.Context, tenant cortex.TenantId, user cortex.UserId) (weights.Snapshot, bool, error) {
	if err := validTenant("persistence.LoadWeights", tenant); err != nil {
		return weights.Snapshot{}, false, err
	}
	data, err := r.client.Get(ctx, r.weightsKey(tenant, user)).Bytes()
	if err == redis.Nil {
		return weights.Snapshot{}, false, nil
	}
	if err != nil {
		return weights.Snapshot{}, false, cortex.WrapFault("persistence.LoadWeights", cortex.ConflictingState, string(tenant), err)
	}
	var snap weights.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return weights.Snapshot{}, false, cortex.WrapFault("persistence.LoadWeights", cortex.ConflictingState, string(tenant), err)
	}
	return snap, true, nil
}

func (r *RedisStore) SaveTerritories(ctx context.Context, tenant cortex.TenantId, session cortex.SessionId, alloc map[cortex.EntityId]territory.Allocation) error {
	if err := validTenant("persistence.SaveTerritories", tenant); err != nil {
		return err
	}
	data, err := json.Marshal(alloc)
	if err != nil {
		return cortex.WrapFault("persistence.SaveTerritories", cortex.InvalidArgument, string(tenant), err)
	}
	if err := r.client.Set(ctx, r.territoriesKey(tenant, session), data, 0).Err(); err != nil {
		return cortex.WrapFault("persistence.SaveTerritories", cortex.ConflictingState, string(tenant), err)
	}
	return nil
}

func (r *RedisStore) LoadTerritories(ctx context.Context, tenant cortex.TenantId, session cortex.SessionId) (map[cortex.EntityId]territory.Allocation, bool, error) {
	if err := validTenant("persistence.LoadTerritories", tenant); err != nil {
		return nil, false, err
	}
	data, err := r.client.Get(ctx, r.territoriesKey(tenant, session)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, cortex.WrapFault("persistence.LoadTerritories", cortex.ConflictingState, string(tenant), err)
	}
	alloc := make(map[cortex.EntityId]territory.Allocation)
	if err := json.Unmarshal(data, &alloc); err != nil {
		return nil, false, cortex.WrapFault("persistence.LoadTerritories", cortex.ConflictingState, string(tenant), err)
	}
	return alloc, true, nil
}

var _ Store = (*RedisStore)(nil)
