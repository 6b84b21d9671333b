package monplug

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T) *Agent {
	t.Helper()

	snc, err := NewAgent(&AgentFlags{Quiet: true})
	require.NoErrorf(t, err, "agent created")

	return snc
}
