package catalog

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      string
}

// migrations must stay append-only.
var migrations = []migration{
	{
		version: 1,
		name:    "create_products_table",
		up: `
			CREATE TABLE IF NOT EXISTS products (
				spu_id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				price TEXT NOT NULL DEFAULT '0',
				origin_price TEXT NOT NULL DEFAULT '0',
				stock INTEGER NOT NULL DEFAULT 0,
				images TEXT NOT NULL DEFAULT '[]',
				primary_image TEXT NOT NULL DEFAULT '',
				is_put_on_sale INTEGER NOT NULL DEFAULT 1,
				available INTEGER NOT NULL DEFAULT 1,
				category_ids TEXT NOT NULL DEFAULT '[]',
				tags TEXT NOT NULL DEFAULT '[]',
				description TEXT NOT NULL DEFAULT '',
				description_images TEXT NOT NULL DEFAULT '[]',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_products_updated_at
			ON products(updated_at DESC);
		`,
	},
	{
		version: 2,
		name:    "create_categories_and_tags_tables",
		up: `
			CREATE TABLE IF NOT EXISTS categories (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				icon TEXT NOT NULL DEFAULT '',
				sort INTEGER NOT NULL DEFAULT 0,
				is_active INTEGER NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE TABLE IF NOT EXISTS tags (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);
		`,
	},
	{
		version: 3,
		name:    "create_users_and_system_config_tables",
		up: `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				openid TEXT NOT NULL UNIQUE,
				nick_name TEXT NOT NULL DEFAULT '',
				avatar_url TEXT NOT NULL DEFAULT '',
				is_admin INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_users_created_at
			ON users(created_at DESC);

			CREATE TABLE IF NOT EXISTS system_config (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				updated_at TIMESTAMP NOT NULL
			);
		`,
	},
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
