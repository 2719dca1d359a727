package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewZapSatisfiesComponentAwareLogger(t *testing.T) {
	z, err := NewZap(false)
	require.NoError(t, err)
	defer z.Sync()

	var _ ComponentAware = z

	scoped := z.WithComponent("cortex/weights")
	require.NotNil(t, scoped)

	scoped.Info("weight updated", map[string]interface{}{"kind": "tool"})
	scoped.Warn("tier disabled", nil)
	scoped.InfoContext(WithRequestID(context.Background(), "req-1"), "scoped by request", nil)
}

func TestNewZapDebugTogglesLevel(t *testing.T) {
	quiet, err := NewZap(false)
	require.NoError(t, err)
	defer quiet.Sync()
	require.False(t, quiet.base.Core().Enabled(-1)) // zapcore.DebugLevel == -1

	verbose, err := NewZap(true)
	require.NoError(t, err)
	defer verbose.Sync()
	require.True(t, verbose.base.Core().Enabled(-1))
}
