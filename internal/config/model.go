package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ModelSelection is the provider and model chosen via /model, persisted so
// the choice survives restarts.
type ModelSelection struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func modelFilePath() string {
	return filepath.Join(DataDir(), "model.json")
}

// LoadModelSelection reads the persisted model selection. Returns ok=false
// if none has been saved.
func LoadModelSelection() (ModelSelection, bool) {
	data, err := os.ReadFile(modelFilePath())
	if err != nil {
		return ModelSelection{}, false
	}
	var sel ModelSelection
	if err := json.Unmarshal(data, &sel); err != nil {
		return ModelSelection{}, false
	}
	if sel.Provider == "" {
		return ModelSelection{}, false
	}
	return sel, true
}

// SaveModelSelection persists the model selection to the data directory.
func SaveModelSelection(sel ModelSelection) error {
	if _, err := EnsureDataDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(modelFilePath(), data, 0644)
}
