package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(strings.ToLower(driver)) {
	case DialectMySQL:
		return DialectMySQL, nil
	case DialectSQLite:
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// OpenSQL opens and pings a pool for the given dialect. SQLite is limited to
// a single connection so that in-memory databases stay shared.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	if dialect == DialectMySQL {
		var err error
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	switch dialect {
	case DialectMySQL:
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	case DialectSQLite:
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return db, nil
}

// mysqlDSN forces parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

type SQLAdapter struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLAdapter(db *sql.DB, dialect Dialect) *SQLAdapter {
	return &SQLAdapter{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Migrate creates the schema if it does not exist yet.
func (a *SQLAdapter) Migrate(ctx context.Context) error {
	stmts := mysqlSchema
	if a.dialect == DialectSQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// likePattern builds a case-insensitive substring pattern escaped with '!'.
func likePattern(q string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS businesses (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		phone VARCHAR(64) NOT NULL,
		email VARCHAR(255) NOT NULL,
		address TEXT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		business_id VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_users_email (email),
		KEY idx_users_business (business_id),
		CONSTRAINT fk_users_business FOREIGN KEY (business_id) REFERENCES businesses (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id VARCHAR(36) PRIMARY KEY,
		business_id VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		color VARCHAR(32) NOT NULL,
		icon VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_categories_business (business_id),
		CONSTRAINT fk_categories_business FOREIGN KEY (business_id) REFERENCES businesses (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(36) PRIMARY KEY,
		business_id VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		sku VARCHAR(128) NOT NULL,
		category_id VARCHAR(36) NULL,
		price DECIMAL(14,2) NOT NULL,
		cost DECIMAL(14,2) NOT NULL,
		stock INT NOT NULL,
		image VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_products_sku (business_id, sku),
		KEY idx_products_category (category_id),
		CONSTRAINT fk_products_business FOREIGN KEY (business_id) REFERENCES businesses (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id VARCHAR(36) PRIMARY KEY,
		business_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		subtotal DECIMAL(14,2) NOT NULL,
		discount DECIMAL(14,2) NOT NULL,
		total DECIMAL(14,2) NOT NULL,
		payment_method VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_sales_business_created (business_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id VARCHAR(36) PRIMARY KEY,
		sale_id VARCHAR(36) NOT NULL,
		product_id VARCHAR(36) NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL,
		price DECIMAL(14,2) NOT NULL,
		KEY idx_sale_items_sale (sale_id),
		CONSTRAINT fk_sale_items_sale FOREIGN KEY (sale_id) REFERENCES sales (id) ON DELETE CASCADE
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS businesses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT NOT NULL,
		address TEXT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL REFERENCES businesses (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_business ON users (business_id)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL REFERENCES businesses (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		color TEXT NOT NULL,
		icon TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_business ON categories (business_id)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL REFERENCES businesses (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		sku TEXT NOT NULL,
		category_id TEXT NULL,
		price DECIMAL(14,2) NOT NULL,
		cost DECIMAL(14,2) NOT NULL,
		stock INTEGER NOT NULL,
		image TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (business_id, sku)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category_id)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		subtotal DECIMAL(14,2) NOT NULL,
		discount DECIMAL(14,2) NOT NULL,
		total DECIMAL(14,2) NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_business_created ON sales (business_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales (id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price DECIMAL(14,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id)`,
}
