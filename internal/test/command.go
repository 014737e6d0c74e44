package test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/cmn/config"
)

// CmdTest is a helper struct to test commands.
type CmdTest struct {
	Name        string   // Name of the test.
	Args        []string // Arguments to pass to the command.
	ExpectedOut []string // Expected output to be present in the command output.
}

// Command is a helper struct to test commands.
type Command struct {
	Helper
}

// SetupCommand creates a fixture for driving cobra commands against a seeded
// temporary store.
func SetupCommand(t *testing.T, opts ...HelperOption) Command {
	t.Helper()
	return Command{Helper: Setup(t, opts...)}
}

func (th Command) RunCommand(t *testing.T, cmd *cobra.Command, testCase CmdTest) {
	t.Helper()

	output := th.runCommand(t, cmd, testCase.Args)

	for _, expectedOutput := range testCase.ExpectedOut {
		require.Contains(t, output, expectedOutput)
	}
}

// RunCommandWithError runs a command and returns the error (if any) without failing the test.
func (th Command) RunCommandWithError(t *testing.T, cmd *cobra.Command, testCase CmdTest) error {
	t.Helper()

	cmdRoot := &cobra.Command{Use: "root", SilenceUsage: true, SilenceErrors: true}
	cmdRoot.AddCommand(cmd)

	var out bytes.Buffer
	cmdRoot.SetOut(&out)
	cmdRoot.SetErr(&out)
	cmdRoot.SetArgs(withConfigFlag(testCase.Args, th.Config))

	err := cmdRoot.ExecuteContext(th.Context)
	if err == nil {
		for _, expectedOutput := range testCase.ExpectedOut {
			if len(expectedOutput) > 0 {
				require.Contains(t, out.String(), expectedOutput)
			}
		}
	}
	return err
}

func (th Command) runCommand(t *testing.T, cmd *cobra.Command, args []string) string {
	t.Helper()

	cmdRoot := &cobra.Command{Use: "root"}
	cmdRoot.AddCommand(cmd)

	var out bytes.Buffer
	cmdRoot.SetOut(&out)
	cmdRoot.SetErr(&out)
	cmdRoot.SetArgs(withConfigFlag(args, th.Config))

	err := cmdRoot.ExecuteContext(th.Context)
	require.NoError(t, err)

	return out.String()
}

// withConfigFlag appends --config <file> unless already present.
func withConfigFlag(args []string, cfg *config.Config) []string {
	if cfg == nil || cfg.Global.ConfigPath == "" {
		return args
	}
	for _, arg := range args {
		if arg == "--config" || strings.HasPrefix(arg, "--config=") {
			return args
		}
	}
	return append(args, "--config", cfg.Global.ConfigPath)
}
