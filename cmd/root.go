// Package cmd holds the mailproxy CLI commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailproxy application
var rootCmd = &cobra.Command{
	Use:   "mailproxy",
	Short: "Gmail OAuth proxy with a JSON mailbox API",
	Long: `mailproxy authenticates users against Google via OAuth 2.0 and exposes
their mailbox over a small JSON API: list messages, read a message, read a
thread and send a message.

It also supports delegated access: acting on another mailbox using a
previously stored credential, gated by an explicit grant registry.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailproxy version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
