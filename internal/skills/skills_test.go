package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func writeSkill(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

const webResearch = `---
name: web-research
description: Structured approach to conducting thorough web research
---

# Web Research

## When to Use
- User asks you to research a topic
`

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "web-research.md")
	writeSkill(t, path, webResearch)

	skill, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if skill.Name != "web-research" {
		t.Fatalf("name = %q", skill.Name)
	}
	if skill.Description != "Structured approach to conducting thorough web research" {
		t.Fatalf("description = %q", skill.Description)
	}
	if skill.Path != path {
		t.Fatalf("path = %q", skill.Path)
	}
}

func TestParseFileRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no-frontmatter", "# Just a heading\n"},
		{"unterminated", "---\nname: web-research\n"},
		{"missing-description", "---\nname: web-research\n---\nbody\n"},
		{"missing-name", "---\ndescription: something\n---\nbody\n"},
		{"bad-name", "---\nname: Web Research\ndescription: x\n---\nbody\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "skill.md")
			writeSkill(t, path, tc.content)
			if _, err := ParseFile(path); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"a", "web-research", "crm-hygiene-2"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Fatalf("ValidateName(%q) = %v", name, err)
		}
	}
	invalid := []string{"", "-leading", "trailing-", "double--hyphen", "UpperCase", "has space"}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Fatalf("ValidateName(%q) accepted", name)
		}
	}
}

func TestListMergesAgentAndWorkspace(t *testing.T) {
	chdirTemp(t)

	writeSkill(t, filepath.Join("skills", "web-research.md"), webResearch)
	writeSkill(t, filepath.Join("skills", "broken.md"), "no frontmatter here")
	writeSkill(t, filepath.Join("agents", "sdr", "skills", "outreach.md"),
		"---\nname: outreach\ndescription: Drafting outbound sequences\n---\nbody\n")
	// Same name in both places: workspace wins.
	writeSkill(t, filepath.Join("agents", "sdr", "skills", "web-research.md"),
		"---\nname: web-research\ndescription: Agent-local variant\n---\nbody\n")

	skills := List("sdr")
	if len(skills) != 2 {
		t.Fatalf("got %d skills: %+v", len(skills), skills)
	}
	if skills[0].Name != "outreach" || skills[0].Source != "agent" {
		t.Fatalf("skills[0] = %+v", skills[0])
	}
	if skills[1].Name != "web-research" || skills[1].Source != "workspace" {
		t.Fatalf("skills[1] = %+v", skills[1])
	}
	if skills[1].Description != "Structured approach to conducting thorough web research" {
		t.Fatalf("workspace skill did not override: %+v", skills[1])
	}
}

func TestListNoDirectories(t *testing.T) {
	chdirTemp(t)
	if skills := List("sdr"); len(skills) != 0 {
		t.Fatalf("expected no skills, got %+v", skills)
	}
}

func TestListSkipsSubdirectories(t *testing.T) {
	chdirTemp(t)
	writeSkill(t, filepath.Join("skills", "nested", "hidden.md"), webResearch)
	writeSkill(t, filepath.Join("skills", "web-research.md"), webResearch)

	skills := List("")
	if len(skills) != 1 || skills[0].Name != "web-research" {
		t.Fatalf("got %+v", skills)
	}
}
