// Package mcp manages connections to Model Context Protocol servers and
// bridges their tools into the agent's tool registry.
package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	sdrconfig "github.com/NForce-ai/sdrbot/internal/config"
)

// Config is the .sdrbot/mcp_servers.json file.
type Config struct {
	Version int                     `json:"version"`
	Servers map[string]ServerConfig `json:"servers"`
}

// ServerConfig is one configured MCP server. Stdio servers run a local
// command; HTTP servers connect to a streamable-HTTP endpoint.
type ServerConfig struct {
	Enabled   bool   `json:"enabled"`
	Transport string `json:"transport,omitempty"`

	// Stdio transport
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// HTTP transport
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// Cached after a successful connection, shown in /mcp.
	ToolCount int `json:"tool_count,omitempty"`
}

// TransportType returns the effective transport for this server.
func (c *ServerConfig) TransportType() string {
	if c.Transport != "" {
		return c.Transport
	}
	if c.URL != "" {
		return "http"
	}
	return "stdio"
}

func (c *ServerConfig) Validate() error {
	switch c.TransportType() {
	case "http":
		if c.URL == "" {
			return fmt.Errorf("http transport requires url")
		}
		if c.Command != "" {
			return fmt.Errorf("cannot specify both url and command")
		}
	case "stdio":
		if c.Command == "" {
			return fmt.Errorf("stdio transport requires command")
		}
		if c.URL != "" {
			return fmt.Errorf("cannot specify both url and command")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}

// ConfigPath returns the workspace path of mcp_servers.json.
func ConfigPath() string {
	return filepath.Join(sdrconfig.DataDir(), "mcp_servers.json")
}

// LoadConfig reads the MCP configuration, returning an empty config when
// the file is missing or corrupted.
func LoadConfig() *Config {
	return loadConfigFromPath(ConfigPath())
}

func loadConfigFromPath(path string) *Config {
	empty := &Config{Version: 1, Servers: make(map[string]ServerConfig)}
	data, err := os.ReadFile(path)
	if err != nil {
		return empty
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return empty
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Servers == nil {
		cfg.Servers = make(map[string]ServerConfig)
	}
	return &cfg
}

// Save writes the configuration back to mcp_servers.json.
func (c *Config) Save() error {
	return c.saveToPath(ConfigPath())
}

func (c *Config) saveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ServerNames returns the configured server names, sorted.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddServer adds or replaces a server configuration.
func (c *Config) AddServer(name string, cfg ServerConfig) {
	if c.Servers == nil {
		c.Servers = make(map[string]ServerConfig)
	}
	c.Servers[name] = cfg
}

// RemoveServer deletes a server configuration.
func (c *Config) RemoveServer(name string) bool {
	if _, ok := c.Servers[name]; ok {
		delete(c.Servers, name)
		return true
	}
	return false
}

// SetEnabled flips a server's enabled flag in place.
func (c *Config) SetEnabled(name string, enabled bool) bool {
	cfg, ok := c.Servers[name]
	if !ok {
		return false
	}
	cfg.Enabled = enabled
	c.Servers[name] = cfg
	return true
}
