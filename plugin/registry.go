package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultHookTimeout bounds how long a single plugin hook may run.
const DefaultHookTimeout = 5 * time.Second

// Registry holds registered plugins and dispatches hook calls to them.
// Hook implementations are resolved once at registration time so that
// emitting an event does not require a type assertion per plugin.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                []OnInit
	onShutdown            []OnShutdown
	onPaymentRecorded     []OnPaymentRecorded
	onPaymentAllocated    []OnPaymentAllocated
	onPaymentPosted       []OnPaymentPosted
	onOverpaymentResolved []OnOverpaymentResolved
	onInvoiceCreated      []OnInvoiceCreated
	onInvoiceTransitioned []OnInvoiceTransitioned
	onInvoiceFinalized    []OnInvoiceFinalized
	onInvoicePaid         []OnInvoicePaid
	onDeliveryFlushed     []OnDeliveryFlushed
	onCreditCreated       []OnCreditCreated
	onCreditApplied       []OnCreditApplied
	onCreditExpired       []OnCreditExpired
	onCreditCancelled     []OnCreditCancelled
	onDisputeOpened       []OnDisputeOpened
	onDisputeResolved     []OnDisputeResolved
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger swaps the registry logger.
func (r *Registry) WithLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if logger != nil {
		r.logger = logger
	}
}

// SetTimeout overrides the per-hook timeout.
func (r *Registry) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.timeout = d
	}
}

// Register adds a plugin and caches which hooks it implements.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin: cannot register nil plugin")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: %q already registered", p.Name())
		}
	}
	r.plugins = append(r.plugins, p)

	if h, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, h)
	}
	if h, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, h)
	}
	if h, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, h)
	}
	if h, ok := p.(OnPaymentAllocated); ok {
		r.onPaymentAllocated = append(r.onPaymentAllocated, h)
	}
	if h, ok := p.(OnPaymentPosted); ok {
		r.onPaymentPosted = append(r.onPaymentPosted, h)
	}
	if h, ok := p.(OnOverpaymentResolved); ok {
		r.onOverpaymentResolved = append(r.onOverpaymentResolved, h)
	}
	if h, ok := p.(OnInvoiceCreated); ok {
		r.onInvoiceCreated = append(r.onInvoiceCreated, h)
	}
	if h, ok := p.(OnInvoiceTransitioned); ok {
		r.onInvoiceTransitioned = append(r.onInvoiceTransitioned, h)
	}
	if h, ok := p.(OnInvoiceFinalized); ok {
		r.onInvoiceFinalized = append(r.onInvoiceFinalized, h)
	}
	if h, ok := p.(OnInvoicePaid); ok {
		r.onInvoicePaid = append(r.onInvoicePaid, h)
	}
	if h, ok := p.(OnDeliveryFlushed); ok {
		r.onDeliveryFlushed = append(r.onDeliveryFlushed, h)
	}
	if h, ok := p.(OnCreditCreated); ok {
		r.onCreditCreated = append(r.onCreditCreated, h)
	}
	if h, ok := p.(OnCreditApplied); ok {
		r.onCreditApplied = append(r.onCreditApplied, h)
	}
	if h, ok := p.(OnCreditExpired); ok {
		r.onCreditExpired = append(r.onCreditExpired, h)
	}
	if h, ok := p.(OnCreditCancelled); ok {
		r.onCreditCancelled = append(r.onCreditCancelled, h)
	}
	if h, ok := p.(OnDisputeOpened); ok {
		r.onDisputeOpened = append(r.onDisputeOpened, h)
	}
	if h, ok := p.(OnDisputeResolved); ok {
		r.onDisputeResolved = append(r.onDisputeResolved, h)
	}
	return nil
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// callWithTimeout runs fn bounded by the registry timeout. Hook failures are
// logged, never propagated to the caller of the emitting operation.
func (r *Registry) callWithTimeout(ctx context.Context, name, hook string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			r.logger.Warn("plugin hook failed",
				slog.String("plugin", name),
				slog.String("hook", hook),
				slog.Any("error", err))
		}
	case <-ctx.Done():
		r.logger.Warn("plugin hook timed out",
			slog.String("plugin", name),
			slog.String("hook", hook),
			slog.Duration("timeout", r.timeout))
	}
}

// EmitInit dispatches OnInit to all plugins, stopping at the first error.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) error {
	r.mu.RLock()
	hooks := r.onInit
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h.OnInit(ctx, engine); err != nil {
			return fmt.Errorf("plugin: %s init: %w", h.Name(), err)
		}
	}
	return nil
}

// EmitShutdown dispatches OnShutdown to all plugins. All hooks run; the
// first error is returned.
func (r *Registry) EmitShutdown(ctx context.Context) error {
	r.mu.RLock()
	hooks := r.onShutdown
	r.mu.RUnlock()
	var first error
	for _, h := range hooks {
		if err := h.OnShutdown(ctx); err != nil && first == nil {
			first = fmt.Errorf("plugin: %s shutdown: %w", h.Name(), err)
		}
	}
	return first
}

func (r *Registry) EmitPaymentRecorded(ctx context.Context, pay interface{}) {
	r.mu.RLock()
	hooks := r.onPaymentRecorded
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnPaymentRecorded", func(ctx context.Context) error {
			return h.OnPaymentRecorded(ctx, pay)
		})
	}
}

func (r *Registry) EmitPaymentAllocated(ctx context.Context, alloc interface{}) {
	r.mu.RLock()
	hooks := r.onPaymentAllocated
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnPaymentAllocated", func(ctx context.Context) error {
			return h.OnPaymentAllocated(ctx, alloc)
		})
	}
}

func (r *Registry) EmitPaymentPosted(ctx context.Context, pay interface{}) {
	r.mu.RLock()
	hooks := r.onPaymentPosted
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnPaymentPosted", func(ctx context.Context) error {
			return h.OnPaymentPosted(ctx, pay)
		})
	}
}

func (r *Registry) EmitOverpaymentResolved(ctx context.Context, pay, credited interface{}) {
	r.mu.RLock()
	hooks := r.onOverpaymentResolved
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnOverpaymentResolved", func(ctx context.Context) error {
			return h.OnOverpaymentResolved(ctx, pay, credited)
		})
	}
}

func (r *Registry) EmitInvoiceCreated(ctx context.Context, inv interface{}) {
	r.mu.RLock()
	hooks := r.onInvoiceCreated
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnInvoiceCreated", func(ctx context.Context) error {
			return h.OnInvoiceCreated(ctx, inv)
		})
	}
}

func (r *Registry) EmitInvoiceTransitioned(ctx context.Context, inv interface{}, from, to string, automatic bool) {
	r.mu.RLock()
	hooks := r.onInvoiceTransitioned
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnInvoiceTransitioned", func(ctx context.Context) error {
			return h.OnInvoiceTransitioned(ctx, inv, from, to, automatic)
		})
	}
}

func (r *Registry) EmitInvoiceFinalized(ctx context.Context, inv interface{}) {
	r.mu.RLock()
	hooks := r.onInvoiceFinalized
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnInvoiceFinalized", func(ctx context.Context) error {
			return h.OnInvoiceFinalized(ctx, inv)
		})
	}
}

func (r *Registry) EmitInvoicePaid(ctx context.Context, inv interface{}) {
	r.mu.RLock()
	hooks := r.onInvoicePaid
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnInvoicePaid", func(ctx context.Context) error {
			return h.OnInvoicePaid(ctx, inv)
		})
	}
}

func (r *Registry) EmitDeliveryFlushed(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	hooks := r.onDeliveryFlushed
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnDeliveryFlushed", func(ctx context.Context) error {
			return h.OnDeliveryFlushed(ctx, count, elapsed)
		})
	}
}

func (r *Registry) EmitCreditCreated(ctx context.Context, c interface{}) {
	r.mu.RLock()
	hooks := r.onCreditCreated
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnCreditCreated", func(ctx context.Context) error {
			return h.OnCreditCreated(ctx, c)
		})
	}
}

func (r *Registry) EmitCreditApplied(ctx context.Context, app interface{}) {
	r.mu.RLock()
	hooks := r.onCreditApplied
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnCreditApplied", func(ctx context.Context) error {
			return h.OnCreditApplied(ctx, app)
		})
	}
}

func (r *Registry) EmitCreditExpired(ctx context.Context, c interface{}) {
	r.mu.RLock()
	hooks := r.onCreditExpired
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnCreditExpired", func(ctx context.Context) error {
			return h.OnCreditExpired(ctx, c)
		})
	}
}

func (r *Registry) EmitCreditCancelled(ctx context.Context, c interface{}, reason string) {
	r.mu.RLock()
	hooks := r.onCreditCancelled
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnCreditCancelled", func(ctx context.Context) error {
			return h.OnCreditCancelled(ctx, c, reason)
		})
	}
}

func (r *Registry) EmitDisputeOpened(ctx context.Context, d interface{}) {
	r.mu.RLock()
	hooks := r.onDisputeOpened
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnDisputeOpened", func(ctx context.Context) error {
			return h.OnDisputeOpened(ctx, d)
		})
	}
}

func (r *Registry) EmitDisputeResolved(ctx context.Context, d interface{}) {
	r.mu.RLock()
	hooks := r.onDisputeResolved
	r.mu.RUnlock()
	for _, h := range hooks {
		r.callWithTimeout(ctx, h.Name(), "OnDisputeResolved", func(ctx context.Context) error {
			return h.OnDisputeResolved(ctx, d)
		})
	}
}
