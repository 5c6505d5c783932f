// Package commands implements boardctl, the offline companion of the canvas
// server: it renders YAML board fixtures, prints connector routes and mints
// development tokens.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "boardctl",
		Short: "Offline tools for the startup coaching canvas",
		Long: `boardctl works on board fixtures without a running server.

Fixtures are YAML files listing shapes and connections. They can be
rendered to SVG or PNG, copied to the system clipboard as canvas shapes,
and used to check how a connector will be routed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newRenderCmd(), newRouteCmd(), newTokenCmd(), newCopyCmd())
	return root
}

// Execute runs the root command and prints a colored error on failure.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		red.Fprintf(os.Stderr, "✗ %v\n", err)
	}
	return err
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

func success(w io.Writer, format string, a ...any) {
	green.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, a...))
}

func warning(w io.Writer, format string, a ...any) {
	yellow.Fprintf(w, "⚠️  %s\n", fmt.Sprintf(format, a...))
}
