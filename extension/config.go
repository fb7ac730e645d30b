package extension

import "time"

// Config holds the Remit extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.remit" or "remit" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DeliveryBatchSize is the number of finalized invoices to buffer before
	// handing them to the notifier (default: 50).
	DeliveryBatchSize int `json:"delivery_batch_size" mapstructure:"delivery_batch_size" yaml:"delivery_batch_size"`

	// DeliveryFlushInterval is how frequently the delivery buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	DeliveryFlushInterval time.Duration `json:"delivery_flush_interval" mapstructure:"delivery_flush_interval" yaml:"delivery_flush_interval"`

	// CreditSweepInterval controls how often the background sweeper expires
	// credits that have passed their expiry date (default: 1h).
	CreditSweepInterval time.Duration `json:"credit_sweep_interval" mapstructure:"credit_sweep_interval" yaml:"credit_sweep_interval"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/sqlite/mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DeliveryBatchSize:     50,
		DeliveryFlushInterval: 5 * time.Second,
		CreditSweepInterval:   time.Hour,
	}
}
