// Package main provides routerctl, an offline client for the privacy
// scanner, the pre-inference router and the confidence gate.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	localStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	cloudStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#EF4444"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "routerctl",
		Short: "Inspect SecureClaw privacy and routing decisions offline",
		Long: titleStyle.Render("routerctl") + `

Runs the PII scanner, the pre-inference router and the post-inference
confidence gate locally, without a running gateway.

` + dimStyle.Render("Use 'routerctl [command] --help' for more information."),
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file (router weights, embeddings, corpus)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print raw JSON")

	rootCmd.AddCommand(
		newScanCmd(opts),
		newRedactCmd(opts),
		newRouteCmd(opts),
		newValidateCmd(opts),
	)
	return rootCmd
}

func routeStyle(route string) lipgloss.Style {
	if route == "cloud" {
		return cloudStyle
	}
	return localStyle
}

func fail(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
