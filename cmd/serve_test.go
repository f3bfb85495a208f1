package cmd

import (
	"testing"

	"github.com/ferneysalazar/contractorstest-gmail/internal/config"
)

func TestServeCmdFlags(t *testing.T) {
	cmd := newServeCmd()

	flags := []string{
		"listen-addr",
		"base-url",
		"google-client-id",
		"google-client-secret",
		"token-file",
		"grants-file",
		"metrics-enabled",
		"metrics-addr",
		"debug",
	}
	for _, name := range flags {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("serve command missing flag %q", name)
		}
	}

	if got := cmd.Flags().Lookup("listen-addr").DefValue; got != config.DefaultListenAddr {
		t.Errorf("listen-addr default = %q, want %q", got, config.DefaultListenAddr)
	}
	if got := cmd.Flags().Lookup("token-file").DefValue; got != config.DefaultTokenFile {
		t.Errorf("token-file default = %q, want %q", got, config.DefaultTokenFile)
	}
}

func TestRootCmdHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "version"} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}
