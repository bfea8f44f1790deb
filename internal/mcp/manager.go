package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Manager owns the MCP server connections for one session.
type Manager struct {
	mu      sync.RWMutex
	config  *Config
	clients map[string]*Client
	errors  map[string]error
}

func NewManager() *Manager {
	return &Manager{
		config:  LoadConfig(),
		clients: make(map[string]*Client),
		errors:  make(map[string]error),
	}
}

// Config returns the loaded configuration.
func (m *Manager) Config() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Reload re-reads mcp_servers.json and reconnects enabled servers.
func (m *Manager) Reload(ctx context.Context) []string {
	m.StopAll()
	m.mu.Lock()
	m.config = LoadConfig()
	m.mu.Unlock()
	return m.ConnectEnabled(ctx)
}

// ConnectEnabled connects every enabled server. Failing servers are
// disabled in the persisted config so a broken server definition does not
// delay every future startup; the returned names are surfaced to the user
// as a single warning.
func (m *Manager) ConnectEnabled(ctx context.Context) []string {
	m.mu.Lock()
	cfg := m.config
	m.mu.Unlock()

	var failed []string
	changed := false
	for _, name := range cfg.ServerNames() {
		serverCfg := cfg.Servers[name]
		if !serverCfg.Enabled {
			continue
		}
		client := NewClient(name, serverCfg)
		if err := client.Start(ctx); err != nil {
			m.mu.Lock()
			m.errors[name] = err
			m.mu.Unlock()
			cfg.SetEnabled(name, false)
			changed = true
			failed = append(failed, name)
			continue
		}

		m.mu.Lock()
		m.clients[name] = client
		delete(m.errors, name)
		m.mu.Unlock()

		if count := len(client.Tools()); count != serverCfg.ToolCount {
			serverCfg.ToolCount = count
			serverCfg.Enabled = true
			cfg.AddServer(name, serverCfg)
			changed = true
		}
	}
	if changed {
		cfg.Save()
	}
	return failed
}

// ConnectError returns the last connection error for a server, if any.
func (m *Manager) ConnectError(name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errors[name]
}

// Connected returns the names of running servers, sorted.
func (m *Manager) Connected() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StopAll disconnects every running server.
func (m *Manager) StopAll() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.Stop()
	}
}

// AllTools returns the tools of every running server, names prefixed with
// the server name to avoid collisions.
func (m *Manager) AllTools() []ToolSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []ToolSpec
	for name, client := range m.clients {
		for _, tool := range client.Tools() {
			all = append(all, ToolSpec{
				Name:        fmt.Sprintf("%s__%s", name, tool.Name),
				Description: fmt.Sprintf("[%s] %s", name, tool.Description),
				Schema:      tool.Schema,
			})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// CallTool routes a prefixed tool call to its server.
func (m *Manager) CallTool(ctx context.Context, fullName string, args json.RawMessage) (string, error) {
	serverName, toolName, ok := strings.Cut(fullName, "__")
	if !ok {
		return "", fmt.Errorf("invalid MCP tool name: %s (expected servername__toolname)", fullName)
	}

	m.mu.RLock()
	client, found := m.clients[serverName]
	m.mu.RUnlock()
	if !found {
		return "", fmt.Errorf("MCP server %s is not running", serverName)
	}
	return client.CallTool(ctx, toolName, args)
}
