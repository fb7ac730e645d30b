package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Remit store.
var Migrations = migrate.NewGroup("remit")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_remit_invoices",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_invoices (
    id             TEXT PRIMARY KEY,
    tenant_id      TEXT NOT NULL DEFAULT '',
    client_id      TEXT NOT NULL DEFAULT '',
    number         TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'draft',
    currency       TEXT NOT NULL DEFAULT '',
    total_cents    BIGINT NOT NULL DEFAULT 0,
    total_currency TEXT NOT NULL DEFAULT '',
    paid_cents     BIGINT NOT NULL DEFAULT 0,
    paid_currency  TEXT NOT NULL DEFAULT '',
    due_date       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    line_items     JSONB NOT NULL DEFAULT '[]',
    finalized_at   TIMESTAMPTZ,
    paid_at        TIMESTAMPTZ,
    cancelled_at   TIMESTAMPTZ,
    metadata       JSONB NOT NULL DEFAULT '{}',
    version        BIGINT NOT NULL DEFAULT 1,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_remit_invoices_tenant ON remit_invoices (tenant_id);
CREATE INDEX IF NOT EXISTS idx_remit_invoices_client ON remit_invoices (tenant_id, client_id, status);
CREATE INDEX IF NOT EXISTS idx_remit_invoices_due ON remit_invoices (tenant_id, client_id, due_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_remit_invoices_number ON remit_invoices (tenant_id, number);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_remit_invoice_history",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_invoice_history (
    id          TEXT PRIMARY KEY,
    invoice_id  TEXT NOT NULL DEFAULT '',
    from_status TEXT NOT NULL DEFAULT '',
    to_status   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT '',
    note        TEXT NOT NULL DEFAULT '',
    automatic   BOOLEAN NOT NULL DEFAULT FALSE,
    at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_remit_history_invoice ON remit_invoice_history (invoice_id, at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_invoice_history`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_remit_payments",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_payments (
    id                   TEXT PRIMARY KEY,
    tenant_id            TEXT NOT NULL DEFAULT '',
    client_id            TEXT NOT NULL DEFAULT '',
    number               TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'unposted',
    currency             TEXT NOT NULL DEFAULT '',
    amount_cents         BIGINT NOT NULL DEFAULT 0,
    amount_currency      TEXT NOT NULL DEFAULT '',
    allocated_cents      BIGINT NOT NULL DEFAULT 0,
    allocated_currency   TEXT NOT NULL DEFAULT '',
    unallocated_cents    BIGINT NOT NULL DEFAULT 0,
    unallocated_currency TEXT NOT NULL DEFAULT '',
    received_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    posted_at            TIMESTAMPTZ,
    metadata             JSONB NOT NULL DEFAULT '{}',
    version              BIGINT NOT NULL DEFAULT 1,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_remit_payments_tenant ON remit_payments (tenant_id);
CREATE INDEX IF NOT EXISTS idx_remit_payments_client ON remit_payments (tenant_id, client_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_remit_allocations",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_allocations (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL DEFAULT '',
    payment_id      TEXT NOT NULL DEFAULT '',
    invoice_id      TEXT NOT NULL DEFAULT '',
    line_item_id    TEXT NOT NULL DEFAULT '',
    amount_cents    BIGINT NOT NULL DEFAULT 0,
    amount_currency TEXT NOT NULL DEFAULT '',
    sequence        BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_remit_allocations_payment ON remit_allocations (payment_id, sequence);
CREATE INDEX IF NOT EXISTS idx_remit_allocations_invoice ON remit_allocations (invoice_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_remit_allocations_key ON remit_allocations (payment_id, invoice_id, line_item_id, sequence);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_allocations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_remit_credits",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_credits (
    id                 TEXT PRIMARY KEY,
    tenant_id          TEXT NOT NULL DEFAULT '',
    client_id          TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT 'available',
    source_type        TEXT NOT NULL DEFAULT '',
    currency           TEXT NOT NULL DEFAULT '',
    amount_cents       BIGINT NOT NULL DEFAULT 0,
    amount_currency    TEXT NOT NULL DEFAULT '',
    remaining_cents    BIGINT NOT NULL DEFAULT 0,
    remaining_currency TEXT NOT NULL DEFAULT '',
    expires_at         TIMESTAMPTZ,
    cancel_reason      TEXT NOT NULL DEFAULT '',
    metadata           JSONB NOT NULL DEFAULT '{}',
    version            BIGINT NOT NULL DEFAULT 1,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_remit_credits_tenant ON remit_credits (tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_remit_credits_client ON remit_credits (tenant_id, client_id, status);
CREATE INDEX IF NOT EXISTS idx_remit_credits_expiry ON remit_credits (expires_at) WHERE expires_at IS NOT NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_credits`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_remit_credit_applications",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_credit_applications (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL DEFAULT '',
    credit_id       TEXT NOT NULL DEFAULT '',
    invoice_id      TEXT NOT NULL DEFAULT '',
    line_item_id    TEXT NOT NULL DEFAULT '',
    amount_cents    BIGINT NOT NULL DEFAULT 0,
    amount_currency TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_remit_applications_credit ON remit_credit_applications (credit_id, created_at);
CREATE INDEX IF NOT EXISTS idx_remit_applications_invoice ON remit_credit_applications (invoice_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_credit_applications`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_remit_disputes",
			Version: "20240101000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS remit_disputes (
    id                TEXT PRIMARY KEY,
    tenant_id         TEXT NOT NULL DEFAULT '',
    invoice_id        TEXT NOT NULL DEFAULT '',
    line_item_id      TEXT NOT NULL DEFAULT '',
    clinic_id         TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'open',
    disputed_cents    BIGINT NOT NULL DEFAULT 0,
    disputed_currency TEXT NOT NULL DEFAULT '',
    reason            TEXT NOT NULL DEFAULT '',
    messages          JSONB NOT NULL DEFAULT '[]',
    resolution        TEXT NOT NULL DEFAULT '',
    resolved_by       TEXT NOT NULL DEFAULT '',
    resolved_at       TIMESTAMPTZ,
    version           BIGINT NOT NULL DEFAULT 1,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_remit_disputes_tenant ON remit_disputes (tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_remit_disputes_invoice ON remit_disputes (invoice_id);
CREATE INDEX IF NOT EXISTS idx_remit_disputes_clinic ON remit_disputes (tenant_id, clinic_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS remit_disputes`)
				return err
			},
		},
	)
}
