// Command lucerna is the thin CLI driver for the local agent runtime: it
// wires the provider router, tool registry, MCP bridge, and core memory
// together and exposes a handful of cobra subcommands to exercise them.
//
// Environment variables configure cloud provider credentials:
// ANTHROPIC_API_KEY, OPENAI_API_KEY, GROQ_API_KEY, OPENROUTER_API_KEY,
// GEMINI_API_KEY. A
// YAML config file (default ~/.lucerna/config.yaml) controls everything
// else: the loop's step budget, the default agent identity, and the MCP
// server list location.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "lucerna",
		Short: "A local, always-on personal agent runtime",
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to config.yaml")

	root.AddCommand(
		buildRunCmd(&configPath),
		buildMemoryCmd(&configPath),
		buildMCPCmd(&configPath),
	)
	return root
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return home + "/.lucerna/config.yaml"
}
