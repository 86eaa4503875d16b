package tools

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk tool description file. It carries the specs the
// planner renders into its prompt; the Go implementations are registered
// separately.
type Catalog struct {
	Tools []Spec `yaml:"tools"`
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	for _, s := range c.Tools {
		if s.Name == "" {
			return nil, fmt.Errorf("catalog %s: tool entry without a name", path)
		}
	}
	return &c, nil
}

// Apply overlays the catalog's specs onto a registry.
func (c *Catalog) Apply(r *Registry) {
	for _, s := range c.Tools {
		r.SetSpec(s)
	}
}

// RenderSpecs formats tool specs as the planner's prompt expects: one block
// per tool with its signature and argument descriptions.
func RenderSpecs(specs []Spec) string {
	var b strings.Builder
	for _, s := range specs {
		b.WriteString("- ")
		b.WriteString(s.Name)
		b.WriteString("(")
		for i, a := range s.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Name)
			if a.Type != "" {
				b.WriteString(": ")
				b.WriteString(a.Type)
			}
			if !a.Required {
				b.WriteString("?")
			}
		}
		b.WriteString(")")
		if s.Description != "" {
			b.WriteString(": ")
			b.WriteString(s.Description)
		}
		b.WriteString("\n")
		for _, a := range s.Args {
			if a.Description == "" {
				continue
			}
			fmt.Fprintf(&b, "    %s: %s\n", a.Name, a.Description)
		}
	}
	return b.String()
}
