// Package security derives per-tenant key material from a single
// process-wide master key via HKDF-SHA256 (spec §5: "the only permitted
// process-wide singletons are a master key ... and a plugin type
// registry; both are set at init and read-only thereafter").
package security

import (
	"crypto/sha256"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
)

// KeySize is the length, in bytes, of every derived per-tenant key.
const KeySize = 32

// KeyDeriver holds the process-wide master key and memoizes derived
// per-tenant keys so repeated calls for the same tenant are cheap and
// return identical bytes.
type KeyDeriver struct {
	master []byte

	mu    sync.Mutex
	cache map[cortex.TenantId][]byte
}

// NewKeyDeriver constructs a KeyDeriver from a master key. The master key
// is expected to be set once at process init and never rotated at runtime
// (spec §5).
func NewKeyDeriver(master []byte) *KeyDeriver {
	cp := append([]byte(nil), master...)
	return &KeyDeriver{master: cp, cache: make(map[cortex.TenantId][]byte)}
}

// DeriveTenantKey returns the HKDF-SHA256-derived key for tenant, using the
// tenant id as HKDF's info parameter so distinct tenants never collide.
func (k *KeyDeriver) DeriveTenantKey(tenant cortex.TenantId) ([]byte, error) {
	if !tenant.Valid() {
		return nil, cortex.NewFault("security.DeriveTenantKey", cortex.InvalidArgument, string(tenant), "invalid tenant id")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if key, ok := k.cache[tenant]; ok {
		return key, nil
	}

	reader := hkdf.New(sha256.New, k.master, nil, []byte("cortex-tenant:"+string(tenant)))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, cortex.WrapFault("security.DeriveTenantKey", cortex.ConflictingState, string(tenant), err)
	}
	k.cache[tenant] = key
	return key, nil
}
