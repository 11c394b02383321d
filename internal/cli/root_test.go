package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersCoreSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	require.NotNil(t, cmd.Commands())
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("store-dir"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("model"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("endpoint"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("language"))
	require.NotNil(t, cmd.Flags().Lookup("backend"))
	require.NotNil(t, cmd.Flags().Lookup("copy-empty"))
	require.NotNil(t, cmd.Flags().Lookup("silence-gate"))
	require.NotNil(t, cmd.Flags().Lookup("silence-threshold-dbfs"))
	require.Equal(t, "auto", cmd.Flags().Lookup("backend").DefValue)
	require.Equal(t, "false", cmd.Flags().Lookup("copy-empty").DefValue)
	require.Equal(t, "true", cmd.Flags().Lookup("silence-gate").DefValue)
	require.Equal(t, "-65", cmd.Flags().Lookup("silence-threshold-dbfs").DefValue)
	require.NotNil(t, cmd.Flags().Lookup("duration"))
	require.Equal(t, "0s", cmd.Flags().Lookup("duration").DefValue)
	require.NotNil(t, cmd.Flags().Lookup("immediate"))
	require.Equal(t, "false", cmd.Flags().Lookup("immediate").DefValue)
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)
	for _, sub := range []string{"list", "show", "rename", "delete", "retry", "copy", "devices"} {
		require.Contains(t, out.String(), sub)
	}
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "list", args: []string{"list", "--help"}, contains: "List recordings, newest first"},
		{name: "show", args: []string{"show", "--help"}, contains: "Show a recording and its transcript"},
		{name: "rename", args: []string{"rename", "--help"}, contains: "Change the title of a recording"},
		{name: "delete", args: []string{"delete", "--help"}, contains: "Delete recordings"},
		{name: "retry", args: []string{"retry", "--help"}, contains: "Transcribe an existing recording again"},
		{name: "copy", args: []string{"copy", "--help"}, contains: "Copy a recording's transcript"},
		{name: "devices", args: []string{"devices", "--help"}, contains: "List recording devices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			out := new(bytes.Buffer)
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.NoError(t, err)
			require.Contains(t, out.String(), tt.contains)
		})
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	storeDir, args := isolate(t)

	app := newAppState()
	_, _, err := runAppCommand(t, app, append(args, "--model", "gpt-4o-transcribe", "--language", "de", "list"))
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-transcribe", app.cfg.Model)
	require.Equal(t, "de", app.cfg.Language)
	require.Equal(t, storeDir, app.cfg.StoreDir)
	require.Equal(t, "auto", app.cfg.Backend)
}
