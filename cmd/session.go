package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/agent"
	"github.com/NForce-ai/sdrbot/internal/agents"
	"github.com/NForce-ai/sdrbot/internal/config"
	"github.com/NForce-ai/sdrbot/internal/crm"
	"github.com/NForce-ai/sdrbot/internal/db"
	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/mcp"
	"github.com/NForce-ai/sdrbot/internal/sandbox"
	"github.com/NForce-ai/sdrbot/internal/services"
	"github.com/NForce-ai/sdrbot/internal/session"
	"github.com/NForce-ai/sdrbot/internal/skills"
	"github.com/NForce-ai/sdrbot/internal/tools"
	"github.com/NForce-ai/sdrbot/internal/ui"
)

// Session holds everything one interactive run wires together. Slash
// commands mutate it in place; /models rebuilds the provider-dependent
// parts.
type Session struct {
	cfg      *config.Config
	agent    *agents.Agent
	terminal *ui.Terminal
	registry *llm.ToolRegistry
	engine   *llm.Engine
	store    *session.SQLiteStore
	tracker  *agent.TokenTracker
	executor *agent.Executor
	sandbox  sandbox.Executor
	services *services.Registry
	mcp      *mcp.Manager

	// crmClients maps service name to its client so schema re-sync can
	// reuse the authenticated connection.
	crmClients map[string]crm.RecordAPI
	// mcpTools are the currently registered bridged tool names, removed
	// from the registry before an /mcp reload re-registers them.
	mcpTools []string
	tracing  bool
}

func newSession(ctx context.Context) (*Session, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if _, err := config.EnsureDataDir(); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if sel, ok := config.LoadModelSelection(); ok {
		cfg.Provider = sel.Provider
		cfg.ApplyOverrides(sel.Provider, sel.Model)
	}

	agentName := flagAgent
	if agentName == "" {
		agentName = agents.DefaultName
	}
	activeAgent, err := agents.Open(agentName)
	if err != nil {
		return nil, err
	}

	sandboxOpts := sandbox.Options{
		Backend:     cfg.Sandbox.Backend,
		ID:          cfg.Sandbox.ID,
		SetupScript: cfg.Sandbox.Setup,
	}
	if flagSandbox != "" {
		sandboxOpts.Backend = flagSandbox
	}
	if flagSandboxID != "" {
		sandboxOpts.ID = flagSandboxID
	}
	if flagSandboxSetup != "" {
		sandboxOpts.SetupScript = flagSandboxSetup
	}
	executor, err := sandbox.New(ctx, sandboxOpts)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	s := &Session{
		cfg:        cfg,
		agent:      activeAgent,
		terminal:   ui.NewTerminal(),
		registry:   llm.NewToolRegistry(),
		sandbox:    executor,
		services:   services.Load(),
		mcp:        mcp.NewManager(),
		crmClients: make(map[string]crm.RecordAPI),
	}

	s.registerBuiltinTools()
	s.registerServiceTools(ctx)
	s.connectMCP(ctx)

	if err := s.buildEngine(); err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// registerBuiltinTools adds the file/shell/web/memory tool set and marks the
// interrupt set: everything with side effects outside the conversation asks
// for approval.
func (s *Session) registerBuiltinTools() {
	tools.RegisterBuiltins(s.registry, s.sandbox, tools.Options{
		TavilyAPIKey: os.Getenv("TAVILY_API_KEY"),
		Memory:       s.agent,
	})

	s.registry.MarkInterrupting("shell", tools.DescribeShellAction)
	s.registry.MarkInterrupting("write_file", tools.DescribeWriteFileAction)
	s.registry.MarkInterrupting("edit_file", tools.DescribeEditFileAction)
	s.registry.MarkInterrupting("web_search", tools.DescribeWebSearchAction)
	s.registry.MarkInterrupting("fetch_url", tools.DescribeFetchURLAction)

	if s.sandbox.Name() != "local" {
		s.registry.RegisterInterrupting(
			tools.NewExecuteTool(s.sandbox, tools.DefaultLimits()),
			tools.DescribeExecuteAction)
	}

	s.registry.RegisterInterrupting(tools.NewTaskTool(s.runSubTask), tools.DescribeTaskAction)
}

// registerServiceTools wires every enabled service: CRM clients with their
// static and schema-generated tools, and the database tool sets. Syncable
// services with stale schemas are re-synced first.
func (s *Session) registerServiceTools(ctx context.Context) {
	for _, name := range services.Services {
		if !s.services.IsEnabled(name) {
			continue
		}
		if err := s.enableServiceTools(ctx, name); err != nil {
			s.terminal.Notify(fmt.Sprintf("%s: %v", name, err))
		}
	}
}

// enableServiceTools builds the client for one service and registers its
// tools. For syncable CRMs it loads the persisted schemas, syncing live when
// stale or never synced.
func (s *Session) enableServiceTools(ctx context.Context, name string) error {
	switch name {
	case "salesforce":
		client, err := crm.NewSalesforceFromEnv()
		if err != nil {
			return err
		}
		client.RegisterStaticTools(s.registry)
		s.crmClients[name] = client
		return s.registerObjectTools(ctx, name, client, client)

	case "hubspot":
		client, err := crm.NewHubSpotFromEnv()
		if err != nil {
			return err
		}
		client.RegisterStaticTools(s.registry)
		s.crmClients[name] = client
		return s.registerObjectTools(ctx, name, client, client)

	case "attio":
		client, err := crm.NewAttioFromEnv()
		if err != nil {
			return err
		}
		client.RegisterStaticTools(s.registry)
		s.crmClients[name] = client
		return s.registerObjectTools(ctx, name, client, client)

	case "lusha":
		client, err := crm.NewLushaFromEnv()
		if err != nil {
			return err
		}
		client.RegisterStaticTools(s.registry)

	case "hunter":
		client, err := crm.NewHunterFromEnv()
		if err != nil {
			return err
		}
		client.RegisterStaticTools(s.registry)

	case "tavily":
		// web_search is part of the built-in set; enabling the service
		// only gates the credential check at startup.

	case "postgres":
		db.RegisterPostgresTools(s.registry, db.NewPostgresClient())

	case "mysql":
		db.RegisterMySQLTools(s.registry, db.NewMySQLClient())

	case "mongodb":
		db.RegisterMongoTools(s.registry, db.NewMongoClient())
	}
	return nil
}

// registerObjectTools loads (or refreshes) a CRM's object schemas and
// registers the generated record tools.
func (s *Session) registerObjectTools(ctx context.Context, name string, api crm.RecordAPI, schemaAPI crm.SchemaAPI) error {
	if s.services.NeedsSync(name) {
		s.terminal.Notify(fmt.Sprintf("Syncing %s schema...", name))
		if _, err := services.Sync(ctx, s.services, name, schemaAPI); err != nil {
			return fmt.Errorf("schema sync: %w", err)
		}
		if err := s.services.Save(); err != nil {
			return err
		}
	}

	schemas, err := services.LoadSchemas(name)
	if err != nil {
		return err
	}
	if len(schemas) == 0 {
		return nil
	}
	crm.RegisterObjectTools(s.registry, api, schemas)
	return nil
}

// connectMCP connects every enabled MCP server and registers the bridged
// tools. Failures are collected into one warning; the failing servers have
// already been disabled in the persisted config.
func (s *Session) connectMCP(ctx context.Context) {
	failed := s.mcp.ConnectEnabled(ctx)
	if len(failed) > 0 {
		s.terminal.Notify(fmt.Sprintf(
			"MCP: failed to connect %s (disabled; edit %s and /mcp reload to retry)",
			strings.Join(failed, ", "), mcp.ConfigPath()))
	}
	s.mcpTools = mcp.RegisterTools(s.mcp, s.registry)
}

// reloadMCP drops the bridged tools, reconnects every enabled server, and
// registers the fresh tool set.
func (s *Session) reloadMCP(ctx context.Context) []string {
	for _, name := range s.mcpTools {
		s.registry.Unregister(name)
	}
	failed := s.mcp.Reload(ctx)
	s.mcpTools = mcp.RegisterTools(s.mcp, s.registry)
	return failed
}

// buildEngine constructs the provider-dependent half of the session: the
// engine, the session store, and the executor. Called at startup and again
// after /models switches the provider.
func (s *Session) buildEngine() error {
	provider, err := llm.NewProvider(s.cfg)
	if err != nil {
		return err
	}
	model := s.cfg.ActiveModel()

	if s.store == nil {
		store, err := session.NewSQLiteStore(s.agent.Name(), s.cfg.Provider, model)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		s.store = store
	}
	if s.tracker == nil {
		s.tracker = agent.NewTokenTracker()
	}

	engine := llm.NewEngine(provider, s.registry)
	threshold := agent.CompactionThreshold(s.cfg.Compaction.ContextLimit, model)
	compactor := agent.NewCompactor(engine, s.store, s.tracker, model, threshold)

	autoApprove := flagAutoApprove
	if s.executor != nil {
		autoApprove = s.executor.AutoApprove()
	}

	s.engine = engine
	s.executor = agent.NewExecutor(engine, s.store, s.tracker, compactor, s.terminal, agent.ExecutorOptions{
		Model:        model,
		AutoApprove:  autoApprove,
		SystemPrompt: s.systemPrompt,
	})
	return nil
}

// systemPrompt assembles the prompt fresh each turn so prompt.md, memory.md,
// and skill files can be edited mid-session.
func (s *Session) systemPrompt() string {
	prompt, _ := s.agent.Prompt()
	memory, _ := s.agent.ReadMemory()

	var summaries []agent.SkillSummary
	for _, skill := range skills.List(s.agent.Name()) {
		summaries = append(summaries, agent.SkillSummary{
			Name:        skill.Name,
			Description: skill.Description,
			Path:        skill.Path,
		})
	}

	sandboxLabel := ""
	if s.sandbox.Name() != "local" {
		sandboxLabel = s.sandbox.Name()
		if id := s.sandbox.ID(); id != "" {
			sandboxLabel += " " + id
		}
	}

	return agent.BuildSystemPrompt(agent.PromptInputs{
		AgentName:    s.agent.Name(),
		AgentPrompt:  prompt,
		Memory:       memory,
		Skills:       summaries,
		Services:     s.enabledServices(),
		SandboxLabel: sandboxLabel,
	})
}

func (s *Session) enabledServices() []string {
	var names []string
	for _, name := range services.Services {
		if s.services.IsEnabled(name) {
			names = append(names, name)
		}
	}
	return names
}

// subTaskTools is the read-plus-research subset a delegated sub-agent may
// use. Nothing in it mutates CRM or filesystem state.
var subTaskTools = []string{"read_file", "ls", "glob", "grep", "fetch_url", "web_search", "memory_read"}

// runSubTask executes a delegated task in an isolated engine run with a
// read-only tool subset and a fresh context window. The task tool itself
// went through the approval gate, so the sub-agent's research fetches ride
// on that approval.
func (s *Session) runSubTask(ctx context.Context, description, prompt string) (string, error) {
	provider, err := llm.NewProvider(s.cfg)
	if err != nil {
		return "", err
	}
	sub := llm.NewEngine(provider, s.registry)
	sub.SetAllowedTools(subTaskTools)

	allowed := make(map[string]bool, len(subTaskTools))
	for _, name := range subTaskTools {
		allowed[name] = true
	}
	var specs []llm.ToolSpec
	for _, spec := range s.registry.AllSpecs() {
		if allowed[spec.Name] {
			specs = append(specs, spec)
		}
	}

	system := "You are a research sub-agent. Complete the delegated task and reply with a single final report. " +
		"You cannot ask questions; make reasonable assumptions and note them."
	stream, err := sub.Stream(ctx, llm.Request{
		Model: s.cfg.ActiveModel(),
		Messages: []llm.Message{
			llm.SystemText(system),
			llm.UserText(prompt),
		},
		Tools:    specs,
		MaxTurns: 15,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var out strings.Builder
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch event.Type {
		case llm.EventTextDelta:
			out.WriteString(event.Text)
		case llm.EventInterrupt:
			approveAll(event)
		case llm.EventError:
			if event.Err != nil {
				return "", event.Err
			}
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("sub-agent produced no report")
	}
	return strings.TrimSpace(out.String()), nil
}

func approveAll(event llm.Event) {
	responses := make(map[string]llm.InterruptResponse, len(event.Interrupts))
	for _, interrupt := range event.Interrupts {
		decisions := make([]llm.Decision, len(interrupt.ActionRequests))
		for i := range decisions {
			decisions[i] = llm.Decision{Type: llm.DecisionApprove}
		}
		responses[interrupt.ID] = llm.InterruptResponse{Decisions: decisions}
	}
	if event.Resume != nil {
		event.Resume <- responses
	}
}

// Close releases everything that holds an external resource.
func (s *Session) Close(ctx context.Context) {
	if s.mcp != nil {
		s.mcp.StopAll()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.sandbox != nil {
		if err := s.sandbox.Close(ctx); err != nil {
			s.terminal.Notify(fmt.Sprintf("sandbox close: %v", err))
		}
	}
}
