package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sdrconfig "github.com/NForce-ai/sdrbot/internal/config"
	"github.com/NForce-ai/sdrbot/internal/crm"
)

// SyncResult reports what a schema sync produced.
type SyncResult struct {
	SchemaHash string
	Objects    []string
	Changed    bool
}

func schemasDir() string {
	return filepath.Join(sdrconfig.DataDir(), "schemas")
}

func schemaFilePath(service string) string {
	return filepath.Join(schemasDir(), service+".json")
}

// Sync fetches the live object schemas for a syncable service, persists
// them, and records the sync in the registry. The caller saves the
// registry afterwards.
func Sync(ctx context.Context, reg *Registry, name string, api crm.SchemaAPI) (SyncResult, error) {
	if !IsSyncable(name) {
		return SyncResult{}, fmt.Errorf("%s does not require sync", name)
	}

	schemas, err := api.DescribeObjects(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync %s: %w", name, err)
	}

	hash := SchemaHash(schemas)
	objects := make([]string, 0, len(schemas))
	for _, schema := range schemas {
		objects = append(objects, schema.Name)
	}

	if err := saveSchemas(name, schemas); err != nil {
		return SyncResult{}, fmt.Errorf("sync %s: %w", name, err)
	}

	oldHash := reg.GetState(name).SchemaHash
	reg.MarkSynced(name, hash, objects)

	return SyncResult{
		SchemaHash: hash,
		Objects:    objects,
		Changed:    oldHash == "" || oldHash != hash,
	}, nil
}

func saveSchemas(service string, schemas []crm.ObjectSchema) error {
	if err := os.MkdirAll(schemasDir(), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(schemaFilePath(service), data, 0644)
}

// LoadSchemas reads a service's persisted schemas from the last sync.
// Returns nil (no error) when the service has never been synced.
func LoadSchemas(service string) ([]crm.ObjectSchema, error) {
	data, err := os.ReadFile(schemaFilePath(service))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var schemas []crm.ObjectSchema
	if err := json.Unmarshal(data, &schemas); err != nil {
		return nil, fmt.Errorf("schemas for %s: %w", service, err)
	}
	return schemas, nil
}
