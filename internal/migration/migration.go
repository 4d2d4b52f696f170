package migration

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS business_accounts (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		billing_address TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		credit_amount BIGINT NOT NULL,
		unit_price BIGINT NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT PRIMARY KEY,
		business_account_id BIGINT NOT NULL,
		plan_id BIGINT NOT NULL,
		quantity INTEGER NOT NULL,
		total_price BIGINT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		provider TEXT,
		provider_ref TEXT,
		paid_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_orders_account ON orders (business_account_id)`,
	`CREATE INDEX IF NOT EXISTS ix_orders_status ON orders (status)`,
	`CREATE TABLE IF NOT EXISTS credit_balances (
		business_account_id BIGINT PRIMARY KEY,
		total_credits BIGINT NOT NULL DEFAULT 0,
		used_credits BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id BIGINT PRIMARY KEY,
		business_account_id BIGINT NOT NULL,
		order_id BIGINT,
		type TEXT NOT NULL,
		credit_change BIGINT NOT NULL,
		resulting_balance BIGINT NOT NULL,
		description TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_credit_tx_order_type ON credit_transactions (order_id, type)`,
	`CREATE INDEX IF NOT EXISTS ix_credit_tx_account ON credit_transactions (business_account_id)`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		id BIGINT PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		order_id BIGINT,
		status TEXT NOT NULL,
		payload TEXT NOT NULL,
		received_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		last_error TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_events_provider_event ON payment_events (provider, provider_event_id)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGINT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		invoice_number TEXT NOT NULL,
		business_account_id BIGINT NOT NULL,
		business_name TEXT,
		billing_address TEXT,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		issued_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_order ON invoices (order_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_number ON invoices (invoice_number)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id BIGINT PRIMARY KEY,
		visible BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS moderation_jobs (
		id BIGINT PRIMARY KEY,
		post_id BIGINT NOT NULL,
		media_url TEXT NOT NULL,
		submitter_id BIGINT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMP NOT NULL,
		result TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_moderation_jobs_status ON moderation_jobs (status, next_attempt_at)`,
	`CREATE TABLE IF NOT EXISTS engagement_events (
		type TEXT NOT NULL,
		target_id BIGINT NOT NULL,
		actor_id BIGINT NOT NULL,
		applied_at TIMESTAMP NOT NULL,
		PRIMARY KEY (type, target_id, actor_id)
	)`,
	`CREATE TABLE IF NOT EXISTS engagement_counters (
		target_id BIGINT NOT NULL,
		type TEXT NOT NULL,
		count BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (target_id, type)
	)`,
}

// Run creates the schema. Statements are idempotent so startup is safe on
// an already-migrated database.
func Run(db *gorm.DB, log *zap.Logger) error {
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	log.Info("schema ensured", zap.Int("statements", len(statements)))
	return nil
}

// SeedPlans inserts the starter credit plans when none exist yet.
func SeedPlans(db *gorm.DB, genID *snowflake.Node) error {
	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM plans`).Scan(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	seeds := []struct {
		Name    string
		Credits int64
		Price   int64
	}{
		{"Starter", 100, 999},
		{"Growth", 500, 4499},
		{"Scale", 2000, 14999},
	}
	for _, seed := range seeds {
		if err := db.Exec(`
			INSERT INTO plans (id, name, credit_amount, unit_price, currency, active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, genID.Generate(), seed.Name, seed.Credits, seed.Price, "USD", true, now).Error; err != nil {
			return err
		}
	}
	return nil
}
