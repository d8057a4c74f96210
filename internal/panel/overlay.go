package panel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OverlayRules are the per-kind additions an overlay file may carry.
type OverlayRules struct {
	Domains  map[string][]string `yaml:"domains"`
	Features map[string][]string `yaml:"features"`
}

// Overlay extends the built-in rule table from a YAML file, so deployments
// can add domains and feature mappings without recompiling. Universal sets
// are not overridable.
type Overlay struct {
	Epic  OverlayRules `yaml:"epic"`
	Story OverlayRules `yaml:"story"`
}

// LoadOverlay reads and parses an overlay file.
func LoadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules overlay: %w", err)
	}
	var o Overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse rules overlay: %w", err)
	}
	return &o, nil
}

// Apply merges the overlay into the table. Overlay entries replace the
// built-in set for the same key and add new keys.
func (t *Table) Apply(o *Overlay) {
	if o == nil {
		return
	}
	applyRules(&t.Epic, o.Epic)
	applyRules(&t.Story, o.Story)
}

func applyRules(rules *KindRules, overlay OverlayRules) {
	if len(overlay.Domains) > 0 && rules.Domains == nil {
		rules.Domains = make(map[string][]string)
	}
	for domain, reviewers := range overlay.Domains {
		rules.Domains[domain] = reviewers
	}
	if len(overlay.Features) > 0 && rules.Features == nil {
		rules.Features = make(map[string][]string)
	}
	for feature, reviewers := range overlay.Features {
		rules.Features[feature] = reviewers
	}
}
