package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveTenantKeyIsDeterministic(t *testing.T) {
	kd := NewKeyDeriver([]byte("process-wide-master-key-material"))
	k1, err := kd.DeriveTenantKey("acme")
	require.NoError(t, err)
	k2, err := kd.DeriveTenantKey("acme")
	require.NoError(t, err)
	require.Equal(t, k1, k2)
	require.Len(t, k1, KeySize)
}

func TestDeriveTenantKeyDiffersPerTenant(t *testing.T) {
	kd := NewKeyDeriver([]byte("process-wide-master-key-material"))
	k1, err := kd.DeriveTenantKey("acme")
	require.NoError(t, err)
	k2, err := kd.DeriveTenantKey("globex")
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
}

func TestDeriveTenantKeyRejectsInvalidTenant(t *testing.T) {
	kd := NewKeyDeriver([]byte("master"))
	_, err := kd.DeriveTenantKey("")
	require.Error(t, err)
}
