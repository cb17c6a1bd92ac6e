package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mcdev12/dinnerpick/go/internal/models"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Options []models.Option `yaml:"options"`
}

// StaticProvider serves options from a fixed list, typically a YAML file.
type StaticProvider struct {
	options []models.Option
}

// NewStaticProvider creates a provider over options.
func NewStaticProvider(options []models.Option) *StaticProvider {
	return &StaticProvider{options: options}
}

// LoadStaticProvider reads a YAML catalog file.
func LoadStaticProvider(path string) (*StaticProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return ParseStaticCatalog(raw)
}

// ParseStaticCatalog decodes a YAML catalog document.
func ParseStaticCatalog(raw []byte) (*StaticProvider, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Options))
	for i, option := range file.Options {
		if option.ID == "" || option.Name == "" {
			return nil, fmt.Errorf("catalog option %d: id and name are required", i)
		}
		if _, dup := seen[option.ID]; dup {
			return nil, fmt.Errorf("catalog option %d: duplicate id %q", i, option.ID)
		}
		seen[option.ID] = struct{}{}
	}
	if len(file.Options) == 0 {
		return nil, ErrEmptyCatalog
	}
	return NewStaticProvider(file.Options), nil
}

// Fetch returns options matching the query term against name, cuisine and
// categories. Location is ignored.
func (p *StaticProvider) Fetch(_ context.Context, query Query) ([]models.Option, error) {
	term := strings.ToLower(strings.TrimSpace(query.Term))

	out := make([]models.Option, 0, len(p.options))
	for _, option := range p.options {
		if term != "" && !matches(option, term) {
			continue
		}
		out = append(out, option)
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyCatalog
	}
	return out, nil
}

func matches(option models.Option, term string) bool {
	if strings.Contains(strings.ToLower(option.Name), term) || strings.Contains(strings.ToLower(option.Cuisine), term) {
		return true
	}
	for _, category := range option.Categories {
		if strings.Contains(strings.ToLower(category), term) {
			return true
		}
	}
	return false
}
