// Package extension provides the Forge extension adapter for Remit.
//
// It implements the forge.Extension interface to integrate Remit
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.remit" or "remit" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/halcyonlabs/remit"
	"github.com/halcyonlabs/remit/store"
	"github.com/halcyonlabs/remit/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "remit"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Payment allocation and invoice lifecycle engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Remit as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config    Config
	engine    *remit.Engine
	store     store.Store
	remitOpts []remit.Option
	useGrove  bool
}

// New creates a new Remit Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Remit instance.
// This is nil until Register is called.
func (e *Extension) Engine() *remit.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the remit engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build remit options from resolved config.
	opts := e.buildRemitOpts()

	eng := remit.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*remit.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("remit: extension not initialized")
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
		return errors.New("remit: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildRemitOpts constructs remit.Option values from the resolved config.
func (e *Extension) buildRemitOpts() []remit.Option {
	opts := make([]remit.Option, 0, len(e.remitOpts)+2)

	// Apply config-derived options.
	if e.config.DeliveryBatchSize > 0 || e.config.DeliveryFlushInterval > 0 {
		batchSize := e.config.DeliveryBatchSize
		flushInterval := e.config.DeliveryFlushInterval
		defaults := DefaultConfig()
		if batchSize == 0 {
			batchSize = defaults.DeliveryBatchSize
		}
		if flushInterval == 0 {
			flushInterval = defaults.DeliveryFlushInterval
		}
		opts = append(opts, remit.WithDeliveryConfig(batchSize, flushInterval))
	}

	if e.config.CreditSweepInterval > 0 {
		opts = append(opts, remit.WithCreditSweepInterval(e.config.CreditSweepInterval))
	}

	// Append any pass-through remit options.
	opts = append(opts, e.remitOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("remit: configuration is required but not found in config files; " +
				"ensure 'extensions.remit' or 'remit' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("remit: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("delivery_batch_size", e.config.DeliveryBatchSize),
		forge.F("delivery_flush_interval", e.config.DeliveryFlushInterval),
		forge.F("credit_sweep_interval", e.config.CreditSweepInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.remit" first (namespaced pattern).
	if cm.IsSet("extensions.remit") {
		if err := cm.Bind("extensions.remit", &cfg); err == nil {
			e.Logger().Debug("remit: loaded config from file",
				forge.F("key", "extensions.remit"),
			)
			return cfg, true
		}
		e.Logger().Warn("remit: failed to bind extensions.remit config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "remit" key.
	if cm.IsSet("remit") {
		if err := cm.Bind("remit", &cfg); err == nil {
			e.Logger().Debug("remit: loaded config from file",
				forge.F("key", "remit"),
			)
			return cfg, true
		}
		e.Logger().Warn("remit: failed to bind remit config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.DeliveryBatchSize == 0 {
		cfg.DeliveryBatchSize = defaults.DeliveryBatchSize
	}
	if cfg.DeliveryFlushInterval == 0 {
		cfg.DeliveryFlushInterval = defaults.DeliveryFlushInterval
	}
	if cfg.CreditSweepInterval == 0 {
		cfg.CreditSweepInterval = defaults.CreditSweepInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.GroveDatabase == "" && programmaticConfig.GroveDatabase != "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.DeliveryBatchSize == 0 && programmaticConfig.DeliveryBatchSize != 0 {
		yamlConfig.DeliveryBatchSize = programmaticConfig.DeliveryBatchSize
	}
	if yamlConfig.DeliveryFlushInterval == 0 && programmaticConfig.DeliveryFlushInterval != 0 {
		yamlConfig.DeliveryFlushInterval = programmaticConfig.DeliveryFlushInterval
	}
	if yamlConfig.CreditSweepInterval == 0 && programmaticConfig.CreditSweepInterval != 0 {
		yamlConfig.CreditSweepInterval = programmaticConfig.CreditSweepInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
