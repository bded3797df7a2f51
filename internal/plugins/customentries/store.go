package customentries

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one user-defined searchable. Exactly one of Open and Command is
// set.
type Entry struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Icon    string   `yaml:"icon,omitempty"`
	Open    string   `yaml:"open,omitempty"`
	Command []string `yaml:"command,omitempty"`
}

type entriesFile struct {
	Entries []Entry `yaml:"entries"`
}

// DefaultPath returns ~/.config/launchr/entries.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "launchr", "entries.yaml")
}

// Load reads and validates the entries file. A missing file has no entries.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}

	var f entriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Entries))
	entries := make([]Entry, 0, len(f.Entries))
	for i, e := range f.Entries {
		e, err := sanitizeEntry(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i+1, e.ID)
		}
		seen[e.ID] = true
		entries = append(entries, e)
	}
	return entries, nil
}

func sanitizeEntry(e Entry) (Entry, error) {
	e.ID = strings.TrimSpace(e.ID)
	e.Name = strings.TrimSpace(e.Name)
	e.Icon = strings.TrimSpace(e.Icon)
	e.Open = strings.TrimSpace(e.Open)

	if e.ID == "" {
		return e, fmt.Errorf("id is required")
	}
	if e.Name == "" {
		return e, fmt.Errorf("name is required")
	}

	hasOpen := e.Open != ""
	hasCommand := len(e.Command) > 0 && strings.TrimSpace(e.Command[0]) != ""
	switch {
	case hasOpen && hasCommand:
		return e, fmt.Errorf("%s: open and command are mutually exclusive", e.ID)
	case !hasOpen && !hasCommand:
		return e, fmt.Errorf("%s: one of open or command is required", e.ID)
	}
	return e, nil
}
