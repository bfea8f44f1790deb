package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/NForce-ai/sdrbot/internal/config"
	"github.com/NForce-ai/sdrbot/internal/ui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure provider and service credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetupWizard(ui.NewTerminal())
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// serviceCredentialFields maps a service to the env vars the wizard asks
// for. Salesforce auth needs more than the two vars that mark it
// configured, so the sets here are broader than the enable check.
var serviceCredentialFields = map[string][]string{
	"salesforce": {"SF_CLIENT_ID", "SF_CLIENT_SECRET", "SF_REFRESH_TOKEN", "SF_LOGIN_URL"},
	"hubspot":    {"HUBSPOT_ACCESS_TOKEN"},
	"attio":      {"ATTIO_API_KEY"},
	"lusha":      {"LUSHA_API_KEY"},
	"hunter":     {"HUNTER_API_KEY"},
	"tavily":     {"TAVILY_API_KEY"},
}

var secretSuffixes = []string{"_KEY", "_SECRET", "_TOKEN"}

func isSecretVar(name string) bool {
	for _, suffix := range secretSuffixes {
		if len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

// runSetupWizard collects provider and service credentials and writes them
// to the workspace .env file. Existing values are offered as defaults so
// re-running the wizard only changes what the user edits.
func runSetupWizard(terminal *ui.Terminal) error {
	terminal.Println("Let's get sdrbot configured. Values are written to ./.env;\nleave a field blank to keep it unset.")

	var provider string
	providerForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which LLM provider do you want to use?").
				Options(
					huh.NewOption("Anthropic (Claude)", "anthropic"),
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Google (Gemini)", "gemini"),
					huh.NewOption("Ollama (local)", "ollama"),
					huh.NewOption("OpenAI-compatible server", "openai-compat"),
				).
				Value(&provider),
		),
	).WithShowHelp(false)
	if err := providerForm.Run(); err != nil {
		return err
	}

	vars := make(map[string]string)

	switch provider {
	case "anthropic", "openai", "gemini":
		envVar := map[string]string{
			"anthropic": "ANTHROPIC_API_KEY",
			"openai":    "OPENAI_API_KEY",
			"gemini":    "GEMINI_API_KEY",
		}[provider]
		key, err := promptVar(envVar)
		if err != nil {
			return err
		}
		if key != "" {
			vars[envVar] = key
		}
	case "ollama", "openai-compat":
		terminal.Notify("Set the server URL under the " + provider + " section of .sdrbot/config.yaml.")
	}

	var chosen []string
	serviceForm := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Which services do you want to configure credentials for?").
				Options(
					huh.NewOption("Salesforce", "salesforce"),
					huh.NewOption("HubSpot", "hubspot"),
					huh.NewOption("Attio", "attio"),
					huh.NewOption("Lusha", "lusha"),
					huh.NewOption("Hunter", "hunter"),
					huh.NewOption("Tavily (web search)", "tavily"),
				).
				Value(&chosen),
		),
	).WithShowHelp(false)
	if err := serviceForm.Run(); err != nil {
		return err
	}

	for _, service := range chosen {
		for _, envVar := range serviceCredentialFields[service] {
			value, err := promptVar(envVar)
			if err != nil {
				return err
			}
			if value != "" {
				vars[envVar] = value
			}
		}
	}

	if len(vars) == 0 {
		terminal.Notify("Nothing to save.")
		return nil
	}
	if err := config.SaveEnvVars(vars); err != nil {
		return fmt.Errorf("write .env: %w", err)
	}
	terminal.Notify(fmt.Sprintf("Saved %d values to .env.", len(vars)))
	terminal.Notify("Enable services with /services enable <name>; databases and MCP servers are configured in " + config.DataDir() + "/.")
	return nil
}

func promptVar(envVar string) (string, error) {
	value := os.Getenv(envVar)
	input := huh.NewInput().
		Title(envVar).
		Value(&value)
	if isSecretVar(envVar) {
		input = input.EchoMode(huh.EchoModePassword)
	}
	form := huh.NewForm(huh.NewGroup(input)).WithShowHelp(false)
	if err := form.Run(); err != nil {
		return "", err
	}
	return value, nil
}
