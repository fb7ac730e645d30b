package remit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/plugin"
	"github.com/halcyonlabs/remit/store"
)

// Notifier delivers a finalized invoice to the client. Implementations are
// expected to be safe for concurrent use.
type Notifier interface {
	Deliver(ctx context.Context, inv *invoice.Invoice) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, inv *invoice.Invoice) error

func (f NotifierFunc) Deliver(ctx context.Context, inv *invoice.Invoice) error {
	return f(ctx, inv)
}

// Engine is the payment allocation and invoice lifecycle engine.
type Engine struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	notifier Notifier
	now      func() time.Time

	// Background workers
	deliveryQueue chan *invoice.Invoice
	stopChan      chan struct{}
	wg            sync.WaitGroup

	// Configuration
	deliveryBatchSize     int
	deliveryFlushInterval time.Duration
	creditSweepInterval   time.Duration
	casRetries            int
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:                 s,
		plugins:               plugin.NewRegistry(),
		logger:                slog.Default(),
		now:                   time.Now,
		deliveryQueue:         make(chan *invoice.Invoice, 1000),
		stopChan:              make(chan struct{}),
		deliveryBatchSize:     50,
		deliveryFlushInterval: 5 * time.Second,
		creditSweepInterval:   time.Hour,
		casRetries:            3,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithNotifier sets the invoice delivery notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithDeliveryConfig configures the delivery queue worker.
func WithDeliveryConfig(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		e.deliveryBatchSize = batchSize
		e.deliveryFlushInterval = flushInterval
	}
}

// WithCreditSweepInterval sets how often expired credits are swept.
func WithCreditSweepInterval(interval time.Duration) Option {
	return func(e *Engine) {
		e.creditSweepInterval = interval
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	if err := e.plugins.EmitInit(ctx, e); err != nil {
		return err
	}

	e.wg.Add(1)
	go e.deliveryWorker(ctx)

	if e.creditSweepInterval > 0 {
		e.wg.Add(1)
		go e.creditSweeper(ctx)
	}

	e.logger.Info("remit engine started",
		"delivery_batch_size", e.deliveryBatchSize,
		"delivery_flush_interval", e.deliveryFlushInterval,
		"credit_sweep_interval", e.creditSweepInterval,
	)

	return nil
}

// Stop shuts down the Engine, flushing pending deliveries first.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	_ = e.plugins.EmitShutdown(ctx) //nolint:errcheck // shutdown hooks are best-effort

	return e.store.Close()
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry {
	return e.plugins
}

// ──────────────────────────────────────────────────
// Invoice delivery
// ──────────────────────────────────────────────────

// enqueueDelivery hands an invoice to the delivery worker. The send never
// blocks an allocation or transition; on a full queue the delivery is dropped
// and logged.
func (e *Engine) enqueueDelivery(inv *invoice.Invoice) {
	if e.notifier == nil {
		return
	}
	select {
	case e.deliveryQueue <- inv:
	default:
		e.logger.Warn("delivery queue full, dropping invoice delivery",
			"invoice_id", inv.ID.String(),
			"invoice_number", inv.Number,
		)
	}
}

// deliveryWorker batches queued invoices and hands them to the notifier.
func (e *Engine) deliveryWorker(ctx context.Context) {
	defer e.wg.Done()

	batch := make([]*invoice.Invoice, 0, e.deliveryBatchSize)
	ticker := time.NewTicker(e.deliveryFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			// Final flush
			if len(batch) > 0 {
				e.flushDeliveries(ctx, batch)
			}
			return

		case inv := <-e.deliveryQueue:
			batch = append(batch, inv)
			if len(batch) >= e.deliveryBatchSize {
				e.flushDeliveries(ctx, batch)
				batch = make([]*invoice.Invoice, 0, e.deliveryBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				e.flushDeliveries(ctx, batch)
				batch = make([]*invoice.Invoice, 0, e.deliveryBatchSize)
			}
		}
	}
}

func (e *Engine) flushDeliveries(ctx context.Context, batch []*invoice.Invoice) {
	start := e.now()

	delivered := 0
	for _, inv := range batch {
		if err := e.notifier.Deliver(ctx, inv); err != nil {
			e.logger.Error("invoice delivery failed",
				"error", err,
				"invoice_id", inv.ID.String(),
				"invoice_number", inv.Number,
			)
			continue
		}
		delivered++
	}

	elapsed := time.Since(start)
	e.plugins.EmitDeliveryFlushed(ctx, delivered, elapsed)

	e.logger.Debug("flushed invoice deliveries",
		"batch_size", len(batch),
		"delivered", delivered,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Credit expiry sweeper
// ──────────────────────────────────────────────────

func (e *Engine) creditSweeper(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.creditSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			expired, err := e.ExpireCredits(ctx, e.now())
			if err != nil {
				e.logger.Error("credit expiry sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				e.logger.Info("expired credits", "count", expired)
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

type actorKey struct{}

// ContextWithActor tags the context with the identity recorded in invoice
// history and dispute messages.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	if v := ctx.Value(actorKey{}); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "system"
}

// retryStale runs fn up to the configured retry budget, retrying only on
// concurrent-update conflicts.
func (e *Engine) retryStale(fn func() error) error {
	var err error
	for attempt := 0; attempt <= e.casRetries; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}
