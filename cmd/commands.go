package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/agents"
	"github.com/NForce-ai/sdrbot/internal/config"
	"github.com/NForce-ai/sdrbot/internal/crm"
	"github.com/NForce-ai/sdrbot/internal/mcp"
	"github.com/NForce-ai/sdrbot/internal/services"
	"github.com/NForce-ai/sdrbot/internal/skills"
)

const helpText = `Commands:
  /help              Show this help
  /clear             Reset the conversation (new thread, token counters zeroed)
  /tokens            Show session token usage
  /models            List providers and models; /models use <provider> [model] to switch
  /services          List service integrations; /services enable|disable <name>
  /sync [service]    Re-sync CRM object schemas (all enabled syncable services by default)
  /mcp               List MCP servers; /mcp reload to reconnect
  /agents            List agents and show the active one
  /skills            List available skills
  /setup             Run the credential setup wizard
  /tracing           Toggle per-turn token reporting
  /quit /exit /q     Exit

Anything else is sent to the agent. Ctrl+C cancels a running turn.`

// handleCommand dispatches one slash command. Returns true when the session
// should exit.
func (s *Session) handleCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true

	case "help":
		s.terminal.Println(helpText)

	case "clear":
		if err := s.executor.Clear(ctx); err != nil {
			s.terminal.Println("Clear failed: " + err.Error())
			return false
		}
		s.terminal.Notify("Fresh start. Conversation reset and token counters zeroed.")

	case "tokens":
		s.terminal.Println(fmt.Sprintf("Context: ~%d tokens\nSession total: ~%d tokens\nLast response: ~%d tokens",
			s.tracker.CurrentContext(), s.tracker.TotalSessionTokens(), s.tracker.LastOutput()))

	case "models":
		s.commandModels(args)

	case "services":
		s.commandServices(ctx, args)

	case "sync":
		s.commandSync(ctx, args)

	case "mcp":
		s.commandMCP(ctx, args)

	case "agents":
		s.commandAgents()

	case "skills":
		s.commandSkills()

	case "setup":
		s.commandSetup(ctx)

	case "tracing":
		s.tracing = !s.tracing
		if s.tracing {
			s.terminal.Notify("Tracing on: token usage is reported after each turn.")
		} else {
			s.terminal.Notify("Tracing off.")
		}

	default:
		s.terminal.Println("Unknown command: /" + cmd)
		s.terminal.Notify("Type /help for available commands.")
	}
	return false
}

var providerOrder = []string{"anthropic", "openai", "gemini", "ollama", "openai-compat"}

func (s *Session) commandModels(args []string) {
	if len(args) == 0 {
		for _, p := range providerOrder {
			marker := "  "
			if p == s.cfg.Provider {
				marker = "* "
			}
			status := "not configured"
			if s.providerConfigured(p) {
				status = "configured"
			}
			s.terminal.Println(fmt.Sprintf("%s%-14s %-12s %s", marker, p, status, s.providerModel(p)))
		}
		s.terminal.Notify("/models use <provider> [model] to switch.")
		return
	}

	if args[0] != "use" || len(args) < 2 {
		s.terminal.Println("Usage: /models [use <provider> [model]]")
		return
	}
	provider := args[1]
	model := ""
	if len(args) > 2 {
		model = args[2]
	}

	known := false
	for _, p := range providerOrder {
		if p == provider {
			known = true
		}
	}
	if !known {
		s.terminal.Println("Unknown provider: " + provider)
		return
	}

	s.cfg.Provider = provider
	s.cfg.ApplyOverrides(provider, model)
	if err := s.buildEngine(); err != nil {
		s.terminal.Println("Switch failed: " + err.Error())
		return
	}
	if err := config.SaveModelSelection(config.ModelSelection{Provider: provider, Model: s.cfg.ActiveModel()}); err != nil {
		s.terminal.Notify("Selection not persisted: " + err.Error())
	}
	s.terminal.Notify(fmt.Sprintf("Switched to %s (%s).", provider, s.cfg.ActiveModel()))
}

func (s *Session) providerConfigured(name string) bool {
	switch name {
	case "anthropic":
		return s.cfg.Anthropic.APIKey != ""
	case "openai":
		return s.cfg.OpenAI.APIKey != ""
	case "gemini":
		return s.cfg.Gemini.APIKey != ""
	case "ollama":
		return s.cfg.Ollama.BaseURL != ""
	case "openai-compat":
		return s.cfg.OpenAICompat.BaseURL != ""
	}
	return false
}

func (s *Session) providerModel(name string) string {
	switch name {
	case "anthropic":
		return s.cfg.Anthropic.Model
	case "openai":
		return s.cfg.OpenAI.Model
	case "gemini":
		return s.cfg.Gemini.Model
	case "ollama":
		return s.cfg.Ollama.Model
	case "openai-compat":
		return s.cfg.OpenAICompat.Model
	}
	return ""
}

func (s *Session) commandServices(ctx context.Context, args []string) {
	if len(args) == 0 {
		for _, name := range services.Services {
			status := "disabled"
			if s.services.IsEnabled(name) {
				status = "enabled"
			}
			detail := ""
			if !services.HasCredentials(name) {
				detail = "(no credentials)"
			} else if services.IsSyncable(name) {
				if state := s.services.GetState(name); state != nil && state.SyncedAt != "" {
					detail = "synced " + state.SyncedAt
				} else {
					detail = "never synced"
				}
			}
			s.terminal.Println(fmt.Sprintf("  %-12s %-9s %s", name, status, detail))
		}
		s.terminal.Notify("/services enable|disable <name>; credentials go in .env (see /setup).")
		return
	}

	if len(args) < 2 {
		s.terminal.Println("Usage: /services enable|disable <name>")
		return
	}
	verb, name := args[0], args[1]
	switch verb {
	case "enable":
		if err := s.services.Enable(name); err != nil {
			s.terminal.Println("Enable failed: " + err.Error())
			return
		}
		if err := s.services.Save(); err != nil {
			s.terminal.Println("Save failed: " + err.Error())
			return
		}
		if err := s.enableServiceTools(ctx, name); err != nil {
			s.terminal.Println(name + ": " + err.Error())
			return
		}
		s.terminal.Notify(name + " enabled.")
	case "disable":
		if !services.IsKnown(name) {
			s.terminal.Println("Unknown service: " + name)
			return
		}
		s.services.Disable(name)
		if err := s.services.Save(); err != nil {
			s.terminal.Println("Save failed: " + err.Error())
			return
		}
		s.terminal.Notify(name + " disabled. Its tools are removed on next start.")
	default:
		s.terminal.Println("Usage: /services enable|disable <name>")
	}
}

func (s *Session) commandSync(ctx context.Context, args []string) {
	targets := args
	if len(targets) == 0 {
		for _, name := range services.SyncableServices {
			if s.services.IsEnabled(name) {
				targets = append(targets, name)
			}
		}
		if len(targets) == 0 {
			s.terminal.Notify("No enabled services require syncing.")
			return
		}
	}

	for _, name := range targets {
		if !services.IsSyncable(name) {
			s.terminal.Println(fmt.Sprintf("%s does not support syncing (syncable: %s)",
				name, strings.Join(services.SyncableServices, ", ")))
			continue
		}
		client, ok := s.crmClients[name]
		if !ok {
			s.terminal.Println(name + " is not connected; /services enable " + name + " first.")
			continue
		}
		schemaAPI, ok := client.(crm.SchemaAPI)
		if !ok {
			continue
		}
		result, err := services.Sync(ctx, s.services, name, schemaAPI)
		if err != nil {
			s.terminal.Println(name + " sync failed: " + err.Error())
			continue
		}
		if err := s.services.Save(); err != nil {
			s.terminal.Println("Save failed: " + err.Error())
			continue
		}
		schemas, err := services.LoadSchemas(name)
		if err == nil && len(schemas) > 0 {
			crm.RegisterObjectTools(s.registry, client, schemas)
		}
		if result.Changed {
			s.terminal.Notify(fmt.Sprintf("%s: schema changed (%d objects, hash %s); tools regenerated.",
				name, len(result.Objects), result.SchemaHash))
		} else {
			s.terminal.Notify(fmt.Sprintf("%s: schema unchanged (%d objects).", name, len(result.Objects)))
		}
	}
}

func (s *Session) commandMCP(ctx context.Context, args []string) {
	if len(args) > 0 && args[0] == "reload" {
		failed := s.reloadMCP(ctx)
		if len(failed) > 0 {
			s.terminal.Println("Failed to connect: " + strings.Join(failed, ", "))
		}
		s.terminal.Notify(fmt.Sprintf("MCP reloaded; %d servers connected.", len(s.mcp.Connected())))
		return
	}

	cfg := s.mcp.Config()
	names := cfg.ServerNames()
	if len(names) == 0 {
		s.terminal.Notify("No MCP servers configured. Add them to " + mcp.ConfigPath() + " and /mcp reload.")
		return
	}
	connected := make(map[string]bool)
	for _, name := range s.mcp.Connected() {
		connected[name] = true
	}
	for _, name := range names {
		sc := cfg.Servers[name]
		status := "disabled"
		switch {
		case connected[name]:
			status = fmt.Sprintf("connected (%d tools)", sc.ToolCount)
		case sc.Enabled:
			status = "enabled, not connected"
			if err := s.mcp.ConnectError(name); err != nil {
				status = "error: " + err.Error()
			}
		}
		s.terminal.Println(fmt.Sprintf("  %-16s %-9s %s", name, sc.TransportType(), status))
	}
}

func (s *Session) commandAgents() {
	names, err := agents.List()
	if err != nil {
		s.terminal.Println("List failed: " + err.Error())
		return
	}
	if len(names) == 0 {
		names = []string{s.agent.Name()}
	}
	for _, name := range names {
		marker := "  "
		if name == s.agent.Name() {
			marker = "* "
		}
		s.terminal.Println(marker + name)
	}
	s.terminal.Notify("Edit ./agents/<name>/prompt.md to change instructions; restart with --agent <name> to switch.")
}

func (s *Session) commandSkills() {
	list := skills.List(s.agent.Name())
	if len(list) == 0 {
		s.terminal.Notify("No skills found. Add markdown files with name/description frontmatter to ./skills/.")
		return
	}
	for _, skill := range list {
		s.terminal.Println(fmt.Sprintf("  %-24s %s [%s]", skill.Name, skill.Description, skill.Source))
	}
}

func (s *Session) commandSetup(ctx context.Context) {
	if err := runSetupWizard(s.terminal); err != nil {
		s.terminal.Println("Setup cancelled: " + err.Error())
		return
	}
	if err := config.ReloadEnv(); err != nil {
		s.terminal.Println("Reload .env failed: " + err.Error())
		return
	}
	cfg, err := config.Load()
	if err != nil {
		s.terminal.Println("Reload config failed: " + err.Error())
		return
	}
	if sel, ok := config.LoadModelSelection(); ok {
		cfg.Provider = sel.Provider
		cfg.ApplyOverrides(sel.Provider, sel.Model)
	}
	s.cfg = cfg
	if err := s.buildEngine(); err != nil {
		s.terminal.Println("Provider rebuild failed: " + err.Error())
		return
	}
	s.registerServiceTools(ctx)
	s.terminal.Notify("Setup applied.")
}
