// Package skills loads progressive-disclosure skill files: markdown
// documents with YAML frontmatter that the system prompt lists by name and
// description, leaving the model to read the full file only when a task
// matches.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NForce-ai/sdrbot/internal/config"
)

// maxFileSize caps how much of a skill file is read when parsing
// frontmatter. Larger files are skipped rather than loaded into memory.
const maxFileSize = 10 * 1024 * 1024

// Skill is the frontmatter metadata of one skill file.
type Skill struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Path is the file the model should read for the full instructions.
	Path string `yaml:"-"`
	// Source is "workspace" (./skills/) or "agent" (./agents/<name>/skills/).
	Source string `yaml:"-"`
}

// namePattern validates skill names: 1-64 chars, lowercase letters, numbers,
// hyphens only, no leading/trailing hyphen.
var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateName checks a skill name against the naming rules.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("skill name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("skill name must be 1-64 characters, got %d", len(name))
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("skill name must be lowercase letters, numbers, hyphens only: %q", name)
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("skill name cannot contain consecutive hyphens: %q", name)
	}
	return nil
}

// Validate checks that required frontmatter fields are present and sane.
func (s *Skill) Validate() error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if s.Description == "" {
		return fmt.Errorf("skill %q has no description", s.Name)
	}
	if len(s.Description) > 1024 {
		return fmt.Errorf("skill %q description must be <= 1024 characters, got %d", s.Name, len(s.Description))
	}
	return nil
}

// List returns the merged skill set for an agent session: agent-specific
// skills (./agents/<name>/skills/) first, then workspace skills (./skills/),
// with workspace skills overriding agent skills of the same name. Invalid or
// unparseable files are skipped silently. The result is sorted by name.
func List(agentName string) []Skill {
	merged := make(map[string]Skill)

	if agentName != "" {
		agentDir := filepath.Join(config.AgentsDir(), agentName, "skills")
		for _, s := range scanDir(agentDir, "agent") {
			merged[s.Name] = s
		}
	}
	for _, s := range scanDir(config.SkillsDir(), "workspace") {
		merged[s.Name] = s
	}

	skills := make([]Skill, 0, len(merged))
	for _, s := range merged {
		skills = append(skills, s)
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills
}

// scanDir parses every .md file directly inside dir. Subdirectories are not
// descended into, and symlinks that escape dir are refused.
func scanDir(dir, source string) []Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	base, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}

	var skills []Skill
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !isWithin(path, base) {
			continue
		}
		skill, err := ParseFile(path)
		if err != nil {
			continue
		}
		skill.Source = source
		skills = append(skills, *skill)
	}
	return skills
}

// isWithin reports whether path, after resolving symlinks, still lives
// under base. Catches symlinked skill files pointing outside the skills
// directory.
func isWithin(path, base string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ParseFile reads one skill file and extracts its frontmatter. The body is
// not retained; callers point the model at Path instead.
func ParseFile(path string) (*Skill, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("skill file %s exceeds %d bytes", path, maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	front, err := extractFrontmatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var skill Skill
	if err := yaml.Unmarshal([]byte(front), &skill); err != nil {
		return nil, fmt.Errorf("%s: parse frontmatter: %w", path, err)
	}
	skill.Path = path
	if err := skill.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &skill, nil
}

// extractFrontmatter returns the YAML between the leading "---" delimiter
// pair. Format: ---\n<frontmatter>\n---\n<body>.
func extractFrontmatter(content string) (string, error) {
	if !strings.HasPrefix(content, "---") {
		return "", fmt.Errorf("missing frontmatter")
	}
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("unterminated frontmatter")
	}
	return parts[1], nil
}
