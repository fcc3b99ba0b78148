// Package main runs the identify service: POST /identify consolidates
// contact submissions into one identity per person.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is an optional YAML file; environment variables override it.
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "identify",
	Short: "Contact identity consolidation service",
	Long: `identify links contact submissions that share an email or phone number
into one identity and serves the consolidated view over HTTP.

Settings come from an optional YAML file and IDENTIFY_* environment variables.`,
	Version:       version,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
