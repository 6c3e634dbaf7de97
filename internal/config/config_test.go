package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("NODE_ADDRESS")
	os.Unsetenv("MINING_ADDRESS")

	c := Load()
	require.Equal(t, defaultNodeAddress, c.NodeAddress)
	require.False(t, c.IsMiner(), "IsMiner should be false with no MINING_ADDRESS set")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NODE_ADDRESS", "127.0.0.1:3001")
	t.Setenv("MINING_ADDRESS", "some-address")

	c := Load()
	require.Equal(t, "127.0.0.1:3001", c.NodeAddress)
	require.True(t, c.IsMiner(), "IsMiner should be true once MINING_ADDRESS is set")
	require.NotEmpty(t, c.DBPath, "DBPath should be derived from the node address")
}
