package database

import (
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('admin', 'vendor', 'customer') NOT NULL DEFAULT 'customer',
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		vendor_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		price DECIMAL(10,2) NOT NULL,
		stock INT NOT NULL DEFAULT 0,
		category VARCHAR(255) NOT NULL,
		image VARCHAR(255),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX idx_products_vendor (vendor_id),
		INDEX idx_products_category (category)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		status VARCHAR(32) NOT NULL,
		total_price DECIMAL(10,2) NOT NULL,
		payment_method VARCHAR(64) NOT NULL,
		ship_street VARCHAR(255) NOT NULL,
		ship_city VARCHAR(255) NOT NULL,
		ship_postal_code VARCHAR(32) NOT NULL,
		ship_country VARCHAR(128) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX idx_orders_customer (customer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		vendor_id BIGINT NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(10,2) NOT NULL,
		INDEX idx_order_items_order (order_id),
		INDEX idx_order_items_vendor (vendor_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		customer_id BIGINT NOT NULL,
		rating INT NOT NULL,
		comment TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uniq_reviews_product_customer (product_id, customer_id)
	)`,
}

// Migrate creates the schema. Statements are idempotent so running at
// every startup is safe.
func Migrate(db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	return nil
}
