package extension

import (
	"github.com/xraph/grove"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/plugin"
	"github.com/xraph/lettrage/store"
)

// Option configures the lettrage Forge extension.
type Option func(*Extension)

// WithStore sets the store for the lettrage engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from a grove database. The backend
// (postgres/sqlite/mongo) is chosen from the grove driver name.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithEngineOption passes a lettrage.Option through to the underlying engine.
func WithEngineOption(opt lettrage.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a lettrage plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, lettrage.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithStrategy selects the matching strategy by name.
func WithStrategy(name string) Option {
	return func(e *Extension) { e.config.Strategy = name }
}

// WithDisablePersist keeps suggestions out of the store.
func WithDisablePersist() Option {
	return func(e *Extension) { e.config.DisablePersist = true }
}

// WithReconcilablePrefixes sets the account prefixes extracted from journal entries.
func WithReconcilablePrefixes(prefixes ...string) Option {
	return func(e *Extension) { e.config.ReconcilablePrefixes = prefixes }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
