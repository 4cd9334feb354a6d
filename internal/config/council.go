package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MemberConfig describes one council member.
type MemberConfig struct {
	Name        string   `yaml:"name"`
	Style       string   `yaml:"style"`
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
}

// BranchConfig describes one knowledge branch. The high_trust branch is
// served from the ledger and ignores Provider.
type BranchConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Enabled  *bool  `yaml:"enabled"`
}

func (b BranchConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// Council is the roster and branch routing file referenced by COUNCIL_CONFIG.
type Council struct {
	Members  []MemberConfig `yaml:"members"`
	Branches []BranchConfig `yaml:"branches"`
}

// DefaultCouncil is used when no roster file is configured. An empty
// provider means LLM_PROVIDER.
func DefaultCouncil() *Council {
	return &Council{
		Members: []MemberConfig{
			{Name: "analyst", Style: "analyst"},
			{Name: "skeptic", Style: "skeptic"},
			{Name: "synthesizer", Style: "synthesizer"},
		},
		Branches: []BranchConfig{
			{Name: "high_trust"},
			{Name: "hypothesis"},
			{Name: "unverified"},
		},
	}
}

// LoadCouncil reads the roster at path, or returns the default roster when
// path is empty.
func LoadCouncil(path string) (*Council, error) {
	if path == "" {
		return DefaultCouncil(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read council config: %w", err)
	}
	return ParseCouncil(data)
}

// ParseCouncil decodes and checks a roster document. A document without a
// branches section enables every branch.
func ParseCouncil(data []byte) (*Council, error) {
	var c Council
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse council config: %w", err)
	}
	if len(c.Branches) == 0 {
		c.Branches = DefaultCouncil().Branches
	}

	seen := make(map[string]bool, len(c.Members))
	for i, m := range c.Members {
		if m.Name == "" {
			return nil, fmt.Errorf("council member %d: name is required", i)
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("council member %q: duplicate name", m.Name)
		}
		seen[m.Name] = true
		if m.Style == "" {
			c.Members[i].Style = m.Name
		}
		if m.Temperature != nil && (*m.Temperature < 0 || *m.Temperature > 2) {
			return nil, fmt.Errorf("council member %q: temperature must be between 0 and 2", m.Name)
		}
	}

	for _, b := range c.Branches {
		switch b.Name {
		case "high_trust", "hypothesis", "unverified":
		default:
			return nil, fmt.Errorf("unknown branch %q", b.Name)
		}
	}
	return &c, nil
}
