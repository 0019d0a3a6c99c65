// Package app assembles a service from configuration.
package app

import (
	"fmt"

	"github.com/jemish-virani/declaratii-anaf/internal/config"
	"github.com/jemish-virani/declaratii-anaf/pkg/cache"
	"github.com/jemish-virani/declaratii-anaf/pkg/gate"
	"github.com/jemish-virani/declaratii-anaf/pkg/pipeline"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugins"
	"github.com/jemish-virani/declaratii-anaf/pkg/service"
	"github.com/jemish-virani/declaratii-anaf/pkg/workspace"
)

// Logger is the logging seam shared by every layer.
type Logger interface {
	Printf(format string, args ...any)
}

// Option customises Open.
type Option func(*options)

type options struct {
	catalog  *plugin.Catalog
	observer pipeline.Observer
}

// WithCatalog replaces the built-in plugin families.
func WithCatalog(c *plugin.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithObserver forwards pipeline phase transitions.
func WithObserver(fn pipeline.Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// Open builds the registry from cfg.Plugins and wires the shared service.
func Open(cfg config.Config, logger Logger, opts ...Option) (*service.Service, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.catalog == nil {
		o.catalog = plugins.Catalog()
	}

	registry, err := plugin.Build(o.catalog, cfg.Plugins, logger)
	if err != nil {
		return nil, fmt.Errorf("app: build plugins: %w", err)
	}

	return service.New(registry,
		service.WithLogger(logger),
		service.WithGate(gate.New(cfg.GateTimeout.Std())),
		service.WithCache(cache.New(
			cache.WithTTL(cfg.CacheTTL.Std()),
			cache.WithLogger(logger),
		)),
		service.WithWorkspace(workspace.NewManager(cfg.WorkspaceRoot)),
		service.WithObserver(o.observer),
	), nil
}
