package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Entry is one configured plugin package. Package identifies the plugin and
// yields the TypeID unless Type overrides it; Family selects the factory in
// a Catalog; Options are handed to that factory untouched.
type Entry struct {
	Package string         `yaml:"package"`
	Type    string         `yaml:"type,omitempty"`
	Family  string         `yaml:"family"`
	Options map[string]any `yaml:"options,omitempty"`
}

// TypeID returns the explicit Type when set, otherwise the id derived from
// Package.
func (e Entry) TypeID() TypeID {
	if explicit := NormalizeType(e.Type); explicit != "" {
		return explicit
	}
	return TypeFromPackage(e.Package)
}

// DecodeOptions converts the free-form Options map into target by running
// it through YAML, so factories can declare typed option structs.
func (e Entry) DecodeOptions(target any) error {
	if len(e.Options) == 0 {
		return nil
	}
	payload, err := yaml.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("plugin: %s options: %w", e.Package, err)
	}
	if err := yaml.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("plugin: %s options: %w", e.Package, err)
	}
	return nil
}

// Factory builds the pair serving one configured entry.
type Factory func(Entry) (Pair, error)

// Catalog maps family names to factories.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: map[string]Factory{}}
}

// Register installs a family factory. Returns an error if the name already exists.
func (c *Catalog) Register(family string, factory Factory) error {
	name := strings.ToLower(strings.TrimSpace(family))
	if name == "" {
		return fmt.Errorf("plugin: family name is required")
	}
	if factory == nil {
		return fmt.Errorf("plugin: factory is required for %s", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.factories[name]; exists {
		return fmt.Errorf("plugin: family %s already registered", name)
	}
	c.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (c *Catalog) MustRegister(family string, factory Factory) {
	if err := c.Register(family, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for family.
func (c *Catalog) Lookup(family string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	factory, ok := c.factories[strings.ToLower(strings.TrimSpace(family))]
	return factory, ok
}

// Families returns the sorted family names.
func (c *Catalog) Families() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
