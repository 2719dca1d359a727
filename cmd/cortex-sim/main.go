// Command cortex-sim drives one full turn through every cognitive-control
// component so the package can be exercised end-to-end without a host
// runtime wired around it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cortex-sim",
		Short: "Drive a single cognitive-control turn through cortex/session",
		Long: `cortex-sim wires a Session together with a chosen persistence
backend and plays one begin_turn / resolve / end_turn cycle against it,
printing the resolved parameter bundle, decision trace and audit tail.`,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cortex-sim version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}
