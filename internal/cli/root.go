// Package cli implements the strollrd command-line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "0.3.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "strollrd",
	Short: "Strollr walk-tracking and discovery backend",
	Long: `strollrd runs the Strollr backend: GPS sample filtering and smoothing,
walk session management, on-demand place queries and end-of-walk
discovery consolidation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(),
		"Path to the TOML config file")
	rootCmd.AddCommand(versionCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "strollr.toml"
	}
	return filepath.Join(home, ".strollr", "config.toml")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the strollrd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "strollrd %s\n", Version)
	},
}
