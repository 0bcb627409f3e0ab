// Package cli implements the Cuentas command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cuentas",
	Short: "Cuentas — track and pay utility bills automatically",
	Long: `Cuentas keeps your utility accounts in one place: it fetches bills
through provider drivers, reconciles them locally, and can pay them
with a stored card — all from a single local daemon.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
