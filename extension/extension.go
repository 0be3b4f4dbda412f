// Package extension provides the Forge extension adapter for the lettrage
// engine.
//
// It implements the forge.Extension interface to integrate lettrage
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.lettrage" or "lettrage" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/lettrage"
	"github.com/xraph/lettrage/journal"
	"github.com/xraph/lettrage/store"
	"github.com/xraph/lettrage/store/memory"
	"github.com/xraph/lettrage/store/mongo"
	"github.com/xraph/lettrage/store/postgres"
	"github.com/xraph/lettrage/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "lettrage"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Automatic lettrage of third-party account lines"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the lettrage engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *lettrage.Engine
	store      store.Store
	groveDB    *grove.DB
	engineOpts []lettrage.Option
}

// New creates a new lettrage Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying lettrage engine.
// This is nil until Register is called.
func (e *Extension) Engine() *lettrage.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the lettrage engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && e.groveDB != nil {
		s, err := storeFor(e.groveDB)
		if err != nil {
			return err
		}
		e.store = s
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	eng := lettrage.New(e.store, e.buildEngineOpts()...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*lettrage.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("lettrage: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("lettrage: store not initialized")
	}
	return e.store.Ping(ctx)
}

// storeFor picks the store backend matching the grove driver.
func storeFor(db *grove.DB) (store.Store, error) {
	switch name := db.Driver().Name(); name {
	case "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("lettrage: unsupported grove driver %q", name)
	}
}

// buildEngineOpts constructs lettrage.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []lettrage.Option {
	opts := make([]lettrage.Option, 0, len(e.engineOpts)+3)

	if e.config.Strategy != "" {
		opts = append(opts, lettrage.WithStrategy(e.config.Strategy))
	}
	if e.config.DisablePersist {
		opts = append(opts, lettrage.WithPersistSuggestions(false))
	}
	if len(e.config.ReconcilablePrefixes) > 0 {
		opts = append(opts, lettrage.WithReconcilable(journal.AccountPrefixes(e.config.ReconcilablePrefixes...)))
	}

	// Pass-through engine options win over config-derived ones.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("lettrage: configuration is required but not found in config files; " +
				"ensure 'extensions.lettrage' or 'lettrage' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("lettrage: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("strategy", e.config.Strategy),
		forge.F("disable_persist", e.config.DisablePersist),
		forge.F("reconcilable_prefixes", e.config.ReconcilablePrefixes),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.lettrage", "lettrage"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("lettrage: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("lettrage: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = defaults.Strategy
	}
	if len(cfg.ReconcilablePrefixes) == 0 {
		cfg.ReconcilablePrefixes = defaults.ReconcilablePrefixes
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisablePersist {
		yamlConfig.DisablePersist = true
	}

	// String and list fields: YAML takes precedence.
	if yamlConfig.Strategy == "" && programmaticConfig.Strategy != "" {
		yamlConfig.Strategy = programmaticConfig.Strategy
	}
	if len(yamlConfig.ReconcilablePrefixes) == 0 && len(programmaticConfig.ReconcilablePrefixes) > 0 {
		yamlConfig.ReconcilablePrefixes = programmaticConfig.ReconcilablePrefixes
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
