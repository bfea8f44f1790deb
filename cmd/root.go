// Package cmd implements the sdrbot CLI: the default interactive session,
// the slash commands, and the list/reset/setup subcommands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	flagAgent        string
	flagAutoApprove  bool
	flagSandbox      string
	flagSandboxID    string
	flagSandboxSetup string
	flagNoSplash     bool
	flagVersion      bool
)

var rootCmd = &cobra.Command{
	Use:   "sdrbot",
	Short: "RevOps assistant for your terminal",
	Long: `sdrbot is an interactive revenue-operations assistant: prospecting,
lead research, enrichment, and CRM hygiene against Salesforce, HubSpot,
Attio, Lusha, Hunter, your databases, and any MCP server you configure.

Run it with no arguments to start an interactive session in the current
workspace. Credentials live in ./.env; session state in ./.sdrbot/.`,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagVersion {
			fmt.Println("sdrbot " + Version)
			return nil
		}
		return runInteractive(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagAgent, "agent", "", "Agent identifier for separate prompt/memory stores (default: agent)")
	rootCmd.Flags().BoolVar(&flagAutoApprove, "auto-approve", false, "Auto-approve tool usage without prompting")
	rootCmd.Flags().StringVar(&flagSandbox, "sandbox", "", "Remote sandbox for code execution: none, modal, daytona, runloop (default: none)")
	rootCmd.Flags().StringVar(&flagSandboxID, "sandbox-id", "", "Existing sandbox ID to reuse (skips creation and cleanup)")
	rootCmd.Flags().StringVar(&flagSandboxSetup, "sandbox-setup", "", "Path to a setup script run in the sandbox after creation")
	rootCmd.Flags().BoolVar(&flagNoSplash, "no-splash", false, "Disable the startup banner")
	rootCmd.Flags().BoolVar(&flagVersion, "version", false, "Print the version and exit")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
