package plugin

import (
	"errors"
	"fmt"
)

// Logger records registry construction progress.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Build walks entries in order and registers the pair each one yields.
// Entries whose family is unknown, whose factory fails, or whose TypeID is
// already taken are logged and skipped; they never abort startup. The
// returned registry is sealed.
func Build(catalog *Catalog, entries []Entry, logger Logger) (*Registry, error) {
	if catalog == nil {
		return nil, errors.New("plugin: catalog is required")
	}
	if logger == nil {
		logger = nopLogger{}
	}

	registry := NewRegistry()
	for idx, entry := range entries {
		if err := buildEntry(catalog, registry, entry); err != nil {
			logger.Printf("plugin: skip entry %d (%s): %v", idx+1, entry.Package, err)
			continue
		}
		logger.Printf("plugin: registered %s (family %s)", entry.TypeID(), entry.Family)
	}
	registry.Seal()

	if registry.Len() == 0 {
		logger.Printf("plugin: no declaration types registered")
	}
	return registry, nil
}

func buildEntry(catalog *Catalog, registry *Registry, entry Entry) error {
	id := entry.TypeID()
	if id == "" {
		return errors.New("cannot derive a type id")
	}
	factory, ok := catalog.Lookup(entry.Family)
	if !ok {
		return fmt.Errorf("family %q not found", entry.Family)
	}
	pair, err := factory(entry)
	if err != nil {
		return fmt.Errorf("family %q: %w", entry.Family, err)
	}
	return registry.Register(id, pair)
}
