package availability

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Catalog holds the named templates a provider can apply by name.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]Template
}

type catalogFile struct {
	Templates []TemplateSpec `yaml:"templates"`
}

// NewCatalog builds a catalog from already validated templates.
func NewCatalog(templates ...Template) *Catalog {
	c := &Catalog{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		c.templates[t.Name] = t
	}
	return c
}

// DefaultCatalog carries the built-in templates used when no file is configured.
func DefaultCatalog() *Catalog {
	lunch := &Interval{Start: 12 * 60, End: 13 * 60}
	weekdays := func(h WorkingHours) map[time.Weekday]WorkingHours {
		m := make(map[time.Weekday]WorkingHours, 5)
		for d := time.Monday; d <= time.Friday; d++ {
			m[d] = h
		}
		return m
	}

	extended := weekdays(WorkingHours{Start: 8 * 60, End: 20 * 60, Break: lunch})
	extended[time.Saturday] = WorkingHours{Start: 9 * 60, End: 13 * 60}

	return NewCatalog(
		Template{Name: "standard", PerWeekday: weekdays(WorkingHours{Start: 9 * 60, End: 17 * 60, Break: lunch})},
		Template{Name: "mornings", PerWeekday: weekdays(WorkingHours{Start: 8 * 60, End: 12 * 60})},
		Template{Name: "extended", PerWeekday: extended},
	)
}

// LoadCatalog reads templates from a YAML file of the form
//
//	templates:
//	  - name: standard
//	    days:
//	      monday: {start: "09:00", end: "17:00", break: {start: "12:00", end: "13:00"}}
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse templates file: %w", err)
	}

	c := &Catalog{templates: make(map[string]Template, len(file.Templates))}
	for i, spec := range file.Templates {
		tmpl, err := spec.Template()
		if err != nil {
			return nil, fmt.Errorf("template #%d %q: %w", i, spec.Name, err)
		}
		if _, dup := c.templates[tmpl.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate template %q", ErrInvalidTemplate, tmpl.Name)
		}
		c.templates[tmpl.Name] = tmpl
	}
	return c, nil
}

func (c *Catalog) Get(name string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[name]
	return t, ok
}

// Names returns the template names in alphabetical order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.templates))
	for n := range c.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Replace swaps in the templates of other, used on file reload.
func (c *Catalog) Replace(other *Catalog) {
	other.mu.RLock()
	next := make(map[string]Template, len(other.templates))
	for k, v := range other.templates {
		next[k] = v
	}
	other.mu.RUnlock()

	c.mu.Lock()
	c.templates = next
	c.mu.Unlock()
}
