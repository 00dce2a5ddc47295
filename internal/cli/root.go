// Package cli is the operator tool for a running p2pmessage node.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// globals shared by every subcommand
type options struct {
	node    string
	apiKey  string
	timeout time.Duration
	pretty  bool
	out     io.Writer
}

func (o *options) client() *Client {
	return NewClient(o.node, o.apiKey, o.timeout)
}

func (o *options) print(v any) error {
	return printJSON(o.out, v, o.pretty)
}

// NewRootCmd builds the command tree. out receives command output.
func NewRootCmd(version, commit string, out io.Writer) *cobra.Command {
	o := &options{out: out}
	if f, ok := out.(*os.File); ok {
		o.pretty = term.IsTerminal(int(f.Fd()))
	}

	root := &cobra.Command{
		Use:   "p2pmsgctl",
		Short: "Talk to a p2pmessage node",
		Long: `p2pmsgctl drives a running p2pmessage node over its client API:
send and read messages, follow live events, and inspect or load-test a node.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&o.node, "node", envOr("P2PMESSAGE_NODE", "http://127.0.0.1:7420"), "node client API base URL")
	pf.StringVar(&o.apiKey, "api-key", os.Getenv("P2PMESSAGE_API_KEY"), "client API key")
	pf.DurationVar(&o.timeout, "timeout", 10*time.Second, "request timeout")
	pf.BoolVar(&o.pretty, "pretty", o.pretty, "indent JSON output")

	root.AddCommand(
		identityCmd(o),
		sendCmd(o),
		allCmd(o),
		latestCmd(o),
		nextCmd(o),
		adjacentCmd(o),
		dayCmd(o),
		agentsCmd(o),
		readCmd(o),
		typingCmd(o),
		watchCmd(o),
		inspectCmd(o),
		benchCmd(o),
		versionCmd(version, commit),
	)
	return root
}

// Execute runs the CLI against the process arguments.
func Execute(version, commit string) {
	if err := NewRootCmd(version, commit, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd(version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "p2pmsgctl %s (commit: %s)\n", version, commit)
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
