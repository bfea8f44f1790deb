package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func TestSaveEnvVarsPreservesLayout(t *testing.T) {
	dir := chdirTemp(t)

	original := "# CRM credentials\nSALESFORCE_USERNAME=old@example.com\n\nHUBSPOT_TOKEN=abc\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(original), 0600); err != nil {
		t.Fatal(err)
	}

	err := SaveEnvVars(map[string]string{
		"SALESFORCE_USERNAME": "new@example.com",
		"LUSHA_API_KEY":       "key123",
	})
	if err != nil {
		t.Fatalf("SaveEnvVars() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	want := "# CRM credentials\nSALESFORCE_USERNAME=\"new@example.com\"\n\nHUBSPOT_TOKEN=abc\nLUSHA_API_KEY=\"key123\"\n"
	if got != want {
		t.Errorf("env file after save:\n%q\nwant:\n%q", got, want)
	}
}

func TestSaveEnvVarsCreatesFile(t *testing.T) {
	dir := chdirTemp(t)

	if err := SaveEnvVars(map[string]string{"FOO": "bar"}); err != nil {
		t.Fatalf("SaveEnvVars() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "FOO=\"bar\"\n" {
		t.Errorf("env file = %q, want %q", string(data), "FOO=\"bar\"\n")
	}
}

func TestSaveEnvVarsQuotesOverUnquoted(t *testing.T) {
	dir := chdirTemp(t)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FOO=\"old\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := SaveEnvVars(map[string]string{"FOO": "bar"}); err != nil {
		t.Fatalf("SaveEnvVars() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "FOO=\"bar\"\n" {
		t.Errorf("env file = %q, want %q", string(data), "FOO=\"bar\"\n")
	}
}

func TestSaveEnvVarsQuotesSpecialValues(t *testing.T) {
	chdirTemp(t)

	if err := SaveEnvVars(map[string]string{"GREETING": "hello world # not a comment"}); err != nil {
		t.Fatalf("SaveEnvVars() error = %v", err)
	}

	vars, err := EnvVars()
	if err != nil {
		t.Fatalf("EnvVars() error = %v", err)
	}
	if vars["GREETING"] != "hello world # not a comment" {
		t.Errorf("round-trip value = %q", vars["GREETING"])
	}
}

func TestSaveEnvVarsRepeatedSavesStable(t *testing.T) {
	dir := chdirTemp(t)

	for i := 0; i < 3; i++ {
		if err := SaveEnvVars(map[string]string{"KEY": "value"}); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "KEY=") != 1 {
		t.Errorf("repeated saves duplicated entries:\n%s", data)
	}
	if strings.Contains(string(data), "\n\n\n") {
		t.Errorf("repeated saves accumulated blank lines:\n%q", string(data))
	}
}

func TestEnvLineKey(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"FOO=bar", "FOO"},
		{"export FOO=bar", "FOO"},
		{"  FOO = bar", "FOO"},
		{"# comment", ""},
		{"", ""},
		{"=nokey", ""},
		{"noequals", ""},
	}
	for _, tt := range tests {
		if got := envLineKey(tt.line); got != tt.want {
			t.Errorf("envLineKey(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestModelSelectionRoundTrip(t *testing.T) {
	chdirTemp(t)

	if _, ok := LoadModelSelection(); ok {
		t.Fatal("expected no selection in fresh workspace")
	}

	sel := ModelSelection{Provider: "anthropic", Model: "claude-sonnet-4-5"}
	if err := SaveModelSelection(sel); err != nil {
		t.Fatalf("SaveModelSelection() error = %v", err)
	}

	got, ok := LoadModelSelection()
	if !ok {
		t.Fatal("expected saved selection to load")
	}
	if got != sel {
		t.Errorf("loaded %+v, want %+v", got, sel)
	}
}
