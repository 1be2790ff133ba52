package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	assert.Equal(t, "courtql", root.Use)
	assert.True(t, root.SilenceUsage)
	assert.True(t, root.SilenceErrors)
	require.NotNil(t, root.PersistentFlags().Lookup("env-file"))
	require.NotNil(t, root.PersistentFlags().Lookup("env_file"), "underscore flag names should normalize")

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "ask")
	assert.Contains(t, names, "serve")
}

func TestAskCmd_Flags(t *testing.T) {
	t.Parallel()

	envFile := ".env"
	cmd := newAskCmd(&envFile)
	require.NotNil(t, cmd.Flags().Lookup("json"))
	require.NotNil(t, cmd.Flags().Lookup("show-sql"))
	assert.Error(t, cmd.Args(cmd, nil), "a question argument is required")
	assert.NoError(t, cmd.Args(cmd, []string{"how", "many", "points"}))
}

func TestServeCmd_Flags(t *testing.T) {
	t.Parallel()

	envFile := ".env"
	cmd := newServeCmd(&envFile)
	require.NotNil(t, cmd.Flags().Lookup("listen"))
}
