package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NForce-ai/sdrbot/internal/agents"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents in this workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := agents.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No agents yet. Run sdrbot to create the default agent.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [agent]",
	Short: "Clear an agent's memory, keeping its prompt",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := agents.DefaultName
		if len(args) > 0 {
			name = args[0]
		}
		agent, err := agents.Open(name)
		if err != nil {
			return err
		}
		if err := agent.Reset(); err != nil {
			return err
		}
		fmt.Printf("Memory cleared for %s.\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd, resetCmd)
}
