package database

import (
	"context"
	"fmt"

	"squash-venue-enrichment/internal/models"
	errs "squash-venue-enrichment/pkg/errors"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS venue_categories (
		id INT NOT NULL PRIMARY KEY,
		name VARCHAR(100) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS venues (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		address1 VARCHAR(255) NULL,
		address2 VARCHAR(255) NULL,
		city VARCHAR(120) NULL,
		region VARCHAR(120) NULL,
		postcode VARCHAR(32) NULL,
		country VARCHAR(100) NULL,
		lat DOUBLE NULL,
		lng DOUBLE NULL,
		g_place_id VARCHAR(255) NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'approved',
		category_id INT NOT NULL DEFAULT 6,
		no_of_courts INT NULL,
		no_of_glass_courts INT NULL,
		no_of_non_glass_courts INT NULL,
		no_of_outdoor_courts INT NULL,
		no_of_singles_courts INT NULL,
		no_of_doubles_courts INT NULL,
		court_count_searched_at DATETIME NULL,
		website VARCHAR(512) NULL,
		facebook_url VARCHAR(512) NULL,
		deletion_reason VARCHAR(255) NULL,
		deletion_reason_details TEXT NULL,
		deletion_flagged_by VARCHAR(100) NULL,
		deletion_flagged_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME NULL,
		UNIQUE KEY uq_venues_g_place_id (g_place_id),
		KEY idx_venues_category_updated (category_id, updated_at),
		KEY idx_venues_lat_lng (lat, lng),
		KEY idx_venues_address1 (address1),
		CONSTRAINT fk_venues_category FOREIGN KEY (category_id) REFERENCES venue_categories (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS venue_audit_logs (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		venue_id BIGINT NOT NULL,
		field VARCHAR(64) NOT NULL,
		old_value VARCHAR(255) NULL,
		new_value VARCHAR(255) NULL,
		confidence VARCHAR(16) NOT NULL,
		reasoning TEXT NULL,
		source VARCHAR(32) NOT NULL,
		changed_by VARCHAR(100) NOT NULL,
		created_at DATETIME NOT NULL,
		KEY idx_audit_venue_created (venue_id, created_at),
		CONSTRAINT fk_audit_venue FOREIGN KEY (venue_id) REFERENCES venues (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// SQLite has partial indexes, so Place ID uniqueness ignores soft-deleted rows.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS venue_categories (
		id INTEGER NOT NULL PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS venues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address1 TEXT NULL,
		address2 TEXT NULL,
		city TEXT NULL,
		region TEXT NULL,
		postcode TEXT NULL,
		country TEXT NULL,
		lat REAL NULL,
		lng REAL NULL,
		g_place_id TEXT NULL,
		status TEXT NOT NULL DEFAULT 'approved',
		category_id INTEGER NOT NULL DEFAULT 6 REFERENCES venue_categories (id),
		no_of_courts INTEGER NULL,
		no_of_glass_courts INTEGER NULL,
		no_of_non_glass_courts INTEGER NULL,
		no_of_outdoor_courts INTEGER NULL,
		no_of_singles_courts INTEGER NULL,
		no_of_doubles_courts INTEGER NULL,
		court_count_searched_at DATETIME NULL,
		website TEXT NULL,
		facebook_url TEXT NULL,
		deletion_reason TEXT NULL,
		deletion_reason_details TEXT NULL,
		deletion_flagged_by TEXT NULL,
		deletion_flagged_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_venues_g_place_id ON venues (g_place_id) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_venues_category_updated ON venues (category_id, updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_venues_lat_lng ON venues (lat, lng)`,
	`CREATE TABLE IF NOT EXISTS venue_audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		venue_id INTEGER NOT NULL REFERENCES venues (id),
		field TEXT NOT NULL,
		old_value TEXT NULL,
		new_value TEXT NULL,
		confidence TEXT NOT NULL,
		reasoning TEXT NULL,
		source TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_venue_created ON venue_audit_logs (venue_id, created_at)`,
}

// Migrate creates the tables if missing and seeds the category taxonomy.
// It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := mysqlSchema
	if db.dialect == SQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		wctx, cancel := db.withWriteTimeout(ctx)
		_, err := db.conn.ExecContext(wctx, stmt)
		cancel()
		if err != nil {
			return errs.NewDB("Migrate", fmt.Sprintf("schema statement %d", i+1), err)
		}
	}
	return db.SeedCategoriesCtx(ctx, models.DefaultTaxonomy().All())
}

// SeedCategoriesCtx inserts categories that are not present yet. Existing
// rows keep their names.
func (db *DB) SeedCategoriesCtx(ctx context.Context, cats []models.Category) error {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()

	query := `INSERT IGNORE INTO venue_categories (id, name) VALUES (?, ?)`
	if db.dialect == SQLite {
		query = `INSERT OR IGNORE INTO venue_categories (id, name) VALUES (?, ?)`
	}
	for _, c := range cats {
		if _, err := db.conn.ExecContext(ctx, query, c.ID, c.Name); err != nil {
			return errs.NewDB("SeedCategoriesCtx", fmt.Sprintf("insert category %d", c.ID), err)
		}
	}
	return nil
}

// ListCategoriesCtx returns the taxonomy ordered by id.
func (db *DB) ListCategoriesCtx(ctx context.Context) ([]models.Category, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM venue_categories ORDER BY id`)
	if err != nil {
		return nil, errs.NewDB("ListCategoriesCtx", "failed to query categories", err)
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, errs.NewDB("ListCategoriesCtx", "failed to scan category", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB("ListCategoriesCtx", "row iteration", err)
	}
	return cats, nil
}
