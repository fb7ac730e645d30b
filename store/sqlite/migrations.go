package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Remit store (SQLite).
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
    total_cents    INTEGER NOT NULL DEFAULT 0,
    total_currency TEXT NOT NULL DEFAULT '',
    paid_cents     INTEGER NOT NULL DEFAULT 0,
    paid_currency  TEXT NOT NULL DEFAULT '',
    due_date       TEXT NOT NULL DEFAULT (datetime('now')),
    line_items     TEXT NOT NULL DEFAULT '[]',
    finalized_at   TEXT,
    paid_at        TEXT,
    cancelled_at   TEXT,
    metadata       TEXT NOT NULL DEFAULT '{}',
    version        INTEGER NOT NULL DEFAULT 1,
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_remit_invoices_tenant_number ON remit_invoices (tenant_id, number);
CREATE INDEX IF NOT EXISTS idx_remit_invoices_client ON remit_invoices (tenant_id, client_id);
CREATE INDEX IF NOT EXISTS idx_remit_invoices_due ON remit_invoices (tenant_id, status, due_date);
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
    automatic   INTEGER NOT NULL DEFAULT 0,
    at          TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_remit_invoice_history_invoice ON remit_invoice_history (invoice_id, at);
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
    amount_cents         INTEGER NOT NULL DEFAULT 0,
    amount_currency      TEXT NOT NULL DEFAULT '',
    allocated_cents      INTEGER NOT NULL DEFAULT 0,
    allocated_currency   TEXT NOT NULL DEFAULT '',
    unallocated_cents    INTEGER NOT NULL DEFAULT 0,
    unallocated_currency TEXT NOT NULL DEFAULT '',
    received_at          TEXT NOT NULL DEFAULT (datetime('now')),
    posted_at            TEXT,
    metadata             TEXT NOT NULL DEFAULT '{}',
    version              INTEGER NOT NULL DEFAULT 1,
    created_at           TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at           TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_remit_payments_client ON remit_payments (tenant_id, client_id);
CREATE INDEX IF NOT EXISTS idx_remit_payments_status ON remit_payments (tenant_id, status);
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
    amount_cents    INTEGER NOT NULL DEFAULT 0,
    amount_currency TEXT NOT NULL DEFAULT '',
    sequence        INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_remit_allocations_key ON remit_allocations (payment_id, invoice_id, line_item_id, sequence);
CREATE INDEX IF NOT EXISTS idx_remit_allocations_payment ON remit_allocations (payment_id, sequence);
CREATE INDEX IF NOT EXISTS idx_remit_allocations_invoice ON remit_allocations (invoice_id);
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
    amount_cents       INTEGER NOT NULL DEFAULT 0,
    amount_currency    TEXT NOT NULL DEFAULT '',
    remaining_cents    INTEGER NOT NULL DEFAULT 0,
    remaining_currency TEXT NOT NULL DEFAULT '',
    expires_at         TEXT,
    cancel_reason      TEXT NOT NULL DEFAULT '',
    metadata           TEXT NOT NULL DEFAULT '{}',
    version            INTEGER NOT NULL DEFAULT 1,
    created_at         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_remit_credits_client ON remit_credits (tenant_id, client_id, status);
CREATE INDEX IF NOT EXISTS idx_remit_credits_expiry ON remit_credits (expires_at);
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
    amount_cents    INTEGER NOT NULL DEFAULT 0,
    amount_currency TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_remit_credit_applications_credit ON remit_credit_applications (credit_id);
CREATE INDEX IF NOT EXISTS idx_remit_credit_applications_invoice ON remit_credit_applications (invoice_id);
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
    disputed_cents    INTEGER NOT NULL DEFAULT 0,
    disputed_currency TEXT NOT NULL DEFAULT '',
    reason            TEXT NOT NULL DEFAULT '',
    messages          TEXT NOT NULL DEFAULT '[]',
    resolution        TEXT NOT NULL DEFAULT '',
    resolved_by       TEXT NOT NULL DEFAULT '',
    resolved_at       TEXT,
    version           INTEGER NOT NULL DEFAULT 1,
    created_at        TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_remit_disputes_invoice ON remit_disputes (invoice_id);
CREATE INDEX IF NOT EXISTS idx_remit_disputes_clinic ON remit_disputes (tenant_id, clinic_id, status);
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
