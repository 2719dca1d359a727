package persistence

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
	"github.com/QuestoM/cortex-docs-sub005/cortex/audit"
	"github.com/QuestoM/cortex-docs-sub005/cortex/security"
	"github.com/QuestoM/cortex-docs-sub005/cortex/territory"
	"github.com/QuestoM/cortex-docs-sub005/cortex/weights"
)

func hexPrefix(key []byte) string {
	return hex.EncodeToString(key)[:16]
}

func TestFileStoreAuditAppendAndLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(t.TempDir())
	date := DateKey(time.Now())

	for i := 0; i < 3; i++ {
		e := audit.Entry{TenantID: "acme", SessionID: "s1", Type: "policy_decision", Outcome: "success"}
		require.NoError(t, fs.AppendAudit(ctx, "acme", date, e))
	}

	loaded, err := fs.LoadAudit(ctx, "acme", date)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	require.Equal(t, cortex.SessionId("s1"), loaded[0].SessionID)
}

func TestFileStoreLoadAuditMissingFileReturnsEmpty(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	loaded, err := fs.LoadAudit(context.Background(), "acme", "2026-01-01")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestFileStoreWeightsRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(t.TempDir())

	snap := weights.Snapshot{
		Behavioral: map[string]float64{"verbosity": 0.4},
		Tools:      map[cortex.EntityId]float64{"search": 0.8},
		Models:     map[cortex.EntityId]float64{"gpt-5": 0.6},
		TakenAt:    time.Now(),
	}
	require.NoError(t, fs.SaveWeights(ctx, "acme", "alice", snap))

	loaded, ok, err := fs.LoadWeights(ctx, "acme", "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.Behavioral, loaded.Behavioral)
	require.Equal(t, snap.Tools, loaded.Tools)
}

func TestFileStoreWeightsMissingReturnsNotOK(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	_, ok, err := fs.LoadWeights(context.Background(), "acme", "nobody")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreTerritoriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(t.TempDir())

	alloc := map[cortex.EntityId]territory.Allocation{
		"search": {EntityID: "search", Kind: territory.KindTool, Size: 0.5},
	}
	require.NoError(t, fs.SaveTerritories(ctx, "acme", "sess1", alloc))

	loaded, ok, err := fs.LoadTerritories(ctx, "acme", "sess1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, alloc["search"].Size, loaded["search"].Size)
}

// A store built with NewFileStoreWithKeys never writes the raw tenant id as
// a directory name: the tenant segment on disk is the HKDF-derived key
// prefix, not "acme" itself.
func TestFileStoreWithKeysNamespacesTenantDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keys := security.NewKeyDeriver([]byte("test-master-key"))
	fs := NewFileStoreWithKeys(dir, keys)

	snap := weights.Snapshot{Tools: map[cortex.EntityId]float64{"search": 0.5}}
	require.NoError(t, fs.SaveWeights(ctx, "acme", "alice", snap))

	_, err := os.Stat(filepath.Join(dir, "weights", "acme"))
	require.True(t, os.IsNotExist(err))

	derived, err := keys.DeriveTenantKey("acme")
	require.NoError(t, err)
	segment := filepath.Join(dir, "weights", hexPrefix(derived))
	entries, err := os.ReadDir(segment)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	loaded, ok, err := fs.LoadWeights(ctx, "acme", "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.Tools, loaded.Tools)
}

func TestFileStoreRejectsInvalidTenant(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	err := fs.AppendAudit(context.Background(), "", "2026-01-01", audit.Entry{})
	require.Error(t, err)
	kind, ok := cortex.KindOf(err)
	require.True(t, ok)
	require.Equal(t, cortex.InvalidArgument, kind)
}
