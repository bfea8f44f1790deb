// Package services tracks which revenue services are enabled for this
// workspace and their schema sync state, persisted in
// .sdrbot/services.json.
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sdrconfig "github.com/NForce-ai/sdrbot/internal/config"
)

// All services the assistant knows how to connect.
var Services = []string{
	"salesforce",
	"hubspot",
	"attio",
	"lusha",
	"hunter",
	"tavily",
	"postgres",
	"mysql",
	"mongodb",
}

// Services whose object model is user-specific and must be synced before
// record tools exist.
var SyncableServices = []string{"salesforce", "hubspot", "attio"}

// Environment variables that indicate a service is configured.
var credentialVars = map[string][]string{
	"salesforce": {"SF_CLIENT_ID", "SF_CLIENT_SECRET"},
	"hubspot":    {"HUBSPOT_ACCESS_TOKEN"},
	"attio":      {"ATTIO_API_KEY"},
	"lusha":      {"LUSHA_API_KEY"},
	"hunter":     {"HUNTER_API_KEY"},
	"tavily":     {"TAVILY_API_KEY"},
	"postgres":   {"POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_DB"},
	"mysql":      {"MYSQL_HOST", "MYSQL_USER", "MYSQL_DB"},
	"mongodb":    {"MONGODB_URI", "MONGODB_DB"},
}

// IsKnown reports whether name is a recognized service.
func IsKnown(name string) bool {
	for _, s := range Services {
		if s == name {
			return true
		}
	}
	return false
}

// IsSyncable reports whether a service requires schema sync.
func IsSyncable(name string) bool {
	for _, s := range SyncableServices {
		if s == name {
			return true
		}
	}
	return false
}

// HasCredentials reports whether all required environment variables for a
// service are set.
func HasCredentials(name string) bool {
	vars, ok := credentialVars[name]
	if !ok {
		return false
	}
	for _, v := range vars {
		if os.Getenv(v) == "" {
			return false
		}
	}
	return true
}

// State is the persisted state of one service.
type State struct {
	Enabled    bool           `json:"enabled"`
	SyncedAt   string         `json:"synced_at,omitempty"`
	SchemaHash string         `json:"schema_hash,omitempty"`
	Objects    []string       `json:"objects,omitempty"`
	Settings   map[string]any `json:"settings,omitempty"`
}

// Registry is the full services.json document.
type Registry struct {
	Version  int               `json:"version"`
	Services map[string]*State `json:"services"`
}

// ConfigPath returns the workspace path of services.json.
func ConfigPath() string {
	return filepath.Join(sdrconfig.DataDir(), "services.json")
}

// Load reads services.json, returning an empty registry when the file is
// missing or corrupted.
func Load() *Registry {
	return loadFromPath(ConfigPath())
}

func loadFromPath(path string) *Registry {
	empty := &Registry{Version: 1, Services: make(map[string]*State)}
	data, err := os.ReadFile(path)
	if err != nil {
		return empty
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return empty
	}
	if reg.Version == 0 {
		reg.Version = 1
	}
	if reg.Services == nil {
		reg.Services = make(map[string]*State)
	}
	return &reg
}

// Save writes the registry back to services.json.
func (r *Registry) Save() error {
	return r.saveToPath(ConfigPath())
}

func (r *Registry) saveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetState returns the state for a service, creating a default entry.
func (r *Registry) GetState(name string) *State {
	if state, ok := r.Services[name]; ok {
		return state
	}
	state := &State{}
	r.Services[name] = state
	return state
}

// IsEnabled reports whether a service is enabled.
func (r *Registry) IsEnabled(name string) bool {
	state, ok := r.Services[name]
	return ok && state.Enabled
}

// Enable marks a service enabled. Returns an error for unknown services
// or when credentials are missing.
func (r *Registry) Enable(name string) error {
	if !IsKnown(name) {
		return fmt.Errorf("unknown service: %s", name)
	}
	if !HasCredentials(name) {
		return fmt.Errorf("no credentials found for %s", name)
	}
	r.GetState(name).Enabled = true
	return nil
}

// Disable marks a service disabled.
func (r *Registry) Disable(name string) {
	if state, ok := r.Services[name]; ok {
		state.Enabled = false
	}
}

// NeedsSync reports whether a syncable, enabled service has never been
// synced or whose sync is stale (older than 24 hours).
func (r *Registry) NeedsSync(name string) bool {
	if !IsSyncable(name) {
		return false
	}
	state, ok := r.Services[name]
	if !ok || !state.Enabled {
		return false
	}
	if state.SyncedAt == "" {
		return true
	}
	syncedAt, err := time.Parse(time.RFC3339, state.SyncedAt)
	if err != nil {
		return true
	}
	return time.Since(syncedAt) > 24*time.Hour
}

// MarkSynced records a successful sync.
func (r *Registry) MarkSynced(name, schemaHash string, objects []string) {
	state := r.GetState(name)
	state.SyncedAt = time.Now().UTC().Format(time.RFC3339)
	state.SchemaHash = schemaHash
	state.Objects = objects
}

// GetSetting reads a service-specific setting.
func (r *Registry) GetSetting(name, key string) (any, bool) {
	state, ok := r.Services[name]
	if !ok || state.Settings == nil {
		return nil, false
	}
	v, ok := state.Settings[key]
	return v, ok
}

// SetSetting stores a service-specific setting.
func (r *Registry) SetSetting(name, key string, value any) {
	state := r.GetState(name)
	if state.Settings == nil {
		state.Settings = make(map[string]any)
	}
	state.Settings[key] = value
}

// SchemaHash computes a short content hash over a schema document for
// change detection between syncs.
func SchemaHash(schema any) string {
	data, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
