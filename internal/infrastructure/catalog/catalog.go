// Package catalog loads the static table of compliance controls used to
// enrich questions that mention a control id.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

//go:embed controls.yaml
var defaultControls []byte

// Catalog is an immutable id -> control table.
type Catalog struct {
	controls map[string]domain.Control
	ids      []string
}

// New builds a catalog. Duplicate or empty ids are rejected.
func New(controls []domain.Control) (*Catalog, error) {
	c := &Catalog{controls: make(map[string]domain.Control, len(controls))}
	for _, control := range controls {
		control.ID = strings.TrimSpace(control.ID)
		if control.ID == "" {
			return nil, errors.New("catalog: control with empty id")
		}
		if _, dup := c.controls[control.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate control id %q", control.ID)
		}
		c.controls[control.ID] = control
		c.ids = append(c.ids, control.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Default returns the embedded ISO 27001 Annex A theme catalog.
func Default() (*Catalog, error) {
	return ParseYAML(defaultControls)
}

// Load reads a catalog file. YAML and XLSX are supported; an empty path
// returns the embedded default.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read controls file: %w", err)
		}
		return ParseYAML(data)
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, fmt.Errorf("catalog: unsupported controls file %q", path)
	}
}

func ParseYAML(data []byte) (*Catalog, error) {
	var controls []domain.Control
	if err := yaml.Unmarshal(data, &controls); err != nil {
		return nil, fmt.Errorf("parse controls yaml: %w", err)
	}
	return New(controls)
}

func (c *Catalog) Lookup(id string) (domain.Control, bool) {
	control, ok := c.controls[id]
	return control, ok
}

// IDs returns every control id in ascending order. The slice is a copy.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}

// All returns the controls in id order.
func (c *Catalog) All() []domain.Control {
	out := make([]domain.Control, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.controls[id])
	}
	return out
}
