package persistence

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/audit"
	"github.com/QuestoM/cortex-docs-sub005/cortex/security"
	"github.com/QuestoM/cortex-docs-sub005/cortex/territory"
	"github.com/QuestoM/cortex-docs-sub005/cortex/weights"
)

// FileStore is the filesystem-backed Store (spec §6 persisted state
// layout), laying files out under a base directory exactly as:
//
//	<base>/audit/<tenant>/<date>.log            append-only JSON lines
//	<base>/weights/<tenant>/<user>.json          latest snapshot, whole-file
//	<base>/territories/<tenant>/<session>.json   latest snapshot, whole-file
//
// One mutex per store instance serializes writes; this is a single-process
// store intended for local runs and the cortex-sim demonstrator, not a
// shared multi-process deployment (that is RedisStore's job).
type FileStore struct {
	base string
	mu   sync.Mutex
	keys *security.KeyDeriver
}

// NewFileStore returns a FileStore rooted at base. The directory tree is
// created lazily on first write. Tenant directories are named after the raw
// tenant id; use NewFileStoreWithKeys to namespace them behind a derived key
// instead.
func NewFileStore(base string) *FileStore {
	return &FileStore{base: base}
}

// NewFileStoreWithKeys returns a FileStore that namespaces every tenant's
// directory under a key derived from keys rather than the tenant id itself
// (spec §5's per-tenant key material), so a directory listing of base
// cannot be used to enumerate tenant ids.
func NewFileStoreWithKeys(base string, keys *security.KeyDeriver) *FileStore {
	return &FileStore{base: base, keys: keys}
}

// tenantDir returns the on-disk directory segment for tenant: the raw
// tenant id, or its derived-key hex prefix when the store was built with
// NewFileStoreWithKeys. Falling back to the raw id on a derivation error
// keeps writes available even for an invalid tenant id caught elsewhere.
func (f *FileStore) tenantDir(tenant cortex.TenantId) string {
	if f.keys == nil {
		return string(tenant)
	}
	key, err := f.keys.DeriveTenantKey(tenant)
	if err != nil {
		return string(tenant)
	}
	return hex.EncodeToString(key)[:16]
}

func (f *FileStore) auditPath(tenant cortex.TenantId, date string) string {
	return filepath.Join(f.base, "audit", f.tenantDir(tenant), date+".log")
}

func (f *FileStore) weightsPath(tenant cortex.TenantId, user cortex.UserId) string {
	return filepath.Join(f.base, "weights", f.tenantDir(tenant), string(user)+".json")
}

func (f *FileStore) territoriesPath(tenant cortex.TenantId, session cortex.SessionId) string {
	return filepath.Join(f.base, "territories", f.tenantDir(tenant), string(session)+".json")
}

func (f *FileStore) AppendAudit(ctx context.Context, tenant cortex.TenantId, date string, e audit.Entry) error {
	if err := validTenant("persistence.AppendAudit", tenant); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.auditPath(tenant, date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cortex.WrapFault("persistence.AppendAudit", cortex.ConflictingState, string(tenant), err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return cortex.WrapFault("persistence.AppendAudit", cortex.ConflictingState, string(tenant), err)
	}
	defer file.Close()

	line, err := json.Marshal(e)
	if err != nil {
		return cortex.WrapFault("persistence.AppendAudit", cortex.InvalidArgument, string(tenant), err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return cortex.WrapFault("persistence.AppendAudit", cortex.ConflictingState, string(tenant), err)
	}
	return nil
}

func (f *FileStore) LoadAudit(ctx context.Context, tenant cortex.TenantId, date string) ([]audit.Entry, error) {
	if err := validTenant("persistence.LoadAudit", tenant); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.auditPath(tenant, date))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, cortex.WrapFault("persistence.LoadAudit", cortex.ConflictingState, string(tenant), err)
	}
	defer file.Close()

	var out []audit.Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var e audit.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, cortex.WrapFault("persistence.LoadAudit", cortex.ConflictingState, string(tenant), err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, cortex.WrapFault("persistence.LoadAudit", cortex.ConflictingState, string(tenant), err)
	}
	return out, nil
}

func (f *FileStore) SaveWeights(ctx context.Context, tenant cortex.TenantId, user cortex.UserId, snap weights.Snapshot) error {
	if err := validTenant("persistence.SaveWeights", tenant); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.weightsPath(tenant, user)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cortex.WrapFault("persistence.SaveWeights", cortex.ConflictingState, string(tenant), err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return cortex.WrapFault("persistence.SaveWeights", cortex.InvalidArgument, string(tenant), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cortex.WrapFault("persistence.SaveWeights", cortex.ConflictingState, string(tenant), err)
	}
	return nil
}

func (f *FileStore) LoadWeights(ctx context.Context, tenant cortex.TenantId, user cortex.UserId) (weights.Snapshot, bool, error) {
	if err := validTenant("persistence.LoadWeights", tenant); err != nil {
		return weights.Snapshot{}, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.weightsPath(tenant, user))
	if os.IsNotExist(err) {
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

func (f *FileStore) SaveTerritories(ctx context.Context, tenant cortex.TenantId, session cortex.SessionId, alloc map[cortex.EntityId]territory.Allocation) error {
	if err := validTenant("persistence.SaveTerritories", tenant); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.territoriesPath(tenant, session)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cortex.WrapFault("persistence.SaveTerritories", cortex.ConflictingState, string(tenant), err)
	}
	data, err := json.Marshal(alloc)
	if err != nil {
		return cortex.WrapFault("persistence.SaveTerritories", cortex.InvalidArgument, string(tenant), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cortex.WrapFault("persistence.SaveTerritories", cortex.ConflictingState, string(tenant), err)
	}
	return nil
}

func (f *FileStore) LoadTerritories(ctx context.Context, tenant cortex.TenantId, session cortex.SessionId) (map[cortex.EntityId]territory.Allocation, bool, error) {
	if err := validTenant("persistence.LoadTerritories", tenant); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.territoriesPath(tenant, session))
	if os.IsNotExist(err) {
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

var _ Store = (*FileStore)(nil)
