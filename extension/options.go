package extension

import (
	"time"

	"github.com/halcyonlabs/remit"
	"github.com/halcyonlabs/remit/plugin"
	"github.com/halcyonlabs/remit/store"
)

// Option configures the Remit Forge extension.
type Option func(*Extension)

// WithStore sets the store for the remit engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithRemitOption passes a remit.Option through to the underlying engine.
func WithRemitOption(opt remit.Option) Option {
	return func(e *Extension) {
		e.remitOpts = append(e.remitOpts, opt)
	}
}

// WithPlugin registers a remit plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.remitOpts = append(e.remitOpts, remit.WithPlugin(p))
	}
}

// WithNotifier sets the invoice delivery notifier.
func WithNotifier(n remit.Notifier) Option {
	return func(e *Extension) {
		e.remitOpts = append(e.remitOpts, remit.WithNotifier(n))
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

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithDeliveryBatchSize sets the number of invoices to buffer before delivery.
func WithDeliveryBatchSize(size int) Option {
	return func(e *Extension) { e.config.DeliveryBatchSize = size }
}

// WithDeliveryFlushInterval sets how frequently the delivery buffer is flushed.
func WithDeliveryFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.DeliveryFlushInterval = d }
}

// WithCreditSweepInterval sets how often expired credits are swept.
func WithCreditSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.CreditSweepInterval = d }
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension will auto-construct the appropriate store backend (postgres/sqlite/mongo)
// based on the grove driver type. Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
