package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/subosito/gotenv"
)

const envFileName = ".env"

// LoadEnv loads variables from the workspace .env file into the process
// environment. Missing file is not an error. Existing process variables are
// not overwritten.
func LoadEnv() error {
	if _, err := os.Stat(envFileName); os.IsNotExist(err) {
		return nil
	}
	return gotenv.Load(envFileName)
}

// ReloadEnv re-reads the .env file, overriding process variables so changes
// made by the setup wizard take effect without a restart.
func ReloadEnv() error {
	if _, err := os.Stat(envFileName); os.IsNotExist(err) {
		return nil
	}
	return gotenv.OverLoad(envFileName)
}

// EnvVars returns the variables defined in the workspace .env file.
func EnvVars() (map[string]string, error) {
	f, err := os.Open(envFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer f.Close()
	env, err := gotenv.StrictParse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", envFileName, err)
	}
	return env, nil
}

// SaveEnvVars writes the given variables into the workspace .env file.
// Existing lines are preserved verbatim: comments, blank lines, and the
// order of entries survive the rewrite. Keys already present are updated in
// place; new keys are appended at the end.
func SaveEnvVars(vars map[string]string) error {
	var lines []string
	if data, err := os.ReadFile(envFileName); err == nil {
		lines = strings.Split(string(data), "\n")
		// Drop the trailing empty element from a final newline so we don't
		// accumulate blank lines across saves.
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = lines[:n-1]
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	remaining := make(map[string]string, len(vars))
	for k, v := range vars {
		remaining[k] = v
	}

	for i, line := range lines {
		key := envLineKey(line)
		if key == "" {
			continue
		}
		if value, ok := remaining[key]; ok {
			lines[i] = formatEnvLine(key, value)
			delete(remaining, key)
		}
	}

	// Append new keys in sorted order for a stable file.
	for _, key := range sortedKeys(remaining) {
		lines = append(lines, formatEnvLine(key, remaining[key]))
	}

	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(envFileName, []byte(content), 0600)
}

// envLineKey extracts the variable name from a KEY=VALUE line, or returns
// empty for comments, blanks, and malformed lines.
func envLineKey(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return ""
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")
	eq := strings.Index(trimmed, "=")
	if eq <= 0 {
		return ""
	}
	return strings.TrimSpace(trimmed[:eq])
}

// formatEnvLine always double-quotes the value so later hand edits cannot
// change how the line parses.
func formatEnvLine(key, value string) string {
	return fmt.Sprintf("%s=%q", key, value)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
