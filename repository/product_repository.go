package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace/models"
)

type productRepo struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepo{db: db}
}

func validateProduct(p *models.Product) error {
	if p.Name == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if p.Category == "" {
		return fmt.Errorf("%w: product category is required", ErrInvalidInput)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: product price cannot be negative", ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: product stock cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if p.VendorID <= 0 {
		return fmt.Errorf("%w: vendor id is required", ErrInvalidInput)
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.IsActive = true

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO products (vendor_id, name, description, price, stock, category, image, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.VendorID, p.Name, p.Description, p.Price, p.Stock, p.Category,
		nullableString(p.Image), p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get product id: %w", err)
	}
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: product id must be positive", ErrInvalidInput)
	}

	var p models.Product
	var image sql.NullString
	var vendorID sql.NullInt64
	var vendorName, vendorEmail sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.vendor_id, p.name, p.description, p.price, p.stock,
		       p.category, p.image, p.is_active, p.created_at, p.updated_at,
		       u.id, u.name, u.email
		FROM products p
		LEFT JOIN users u ON u.id = p.vendor_id
		WHERE p.id = ?`, id,
	).Scan(
		&p.ID, &p.VendorID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.Category, &image, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		&vendorID, &vendorName, &vendorEmail,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}

	p.Image = image.String
	p.Vendor = vendorSummary(vendorID, vendorName, vendorEmail)
	return &p, nil
}

func (r *productRepo) ListActive(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.vendor_id, p.name, p.description, p.price, p.stock,
		       p.category, p.image, p.is_active, p.created_at, p.updated_at,
		       u.id, u.name, u.email
		FROM products p
		LEFT JOIN users u ON u.id = p.vendor_id
		WHERE p.is_active = TRUE
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		var image sql.NullString
		var vendorID sql.NullInt64
		var vendorName, vendorEmail sql.NullString
		if err := rows.Scan(
			&p.ID, &p.VendorID, &p.Name, &p.Description, &p.Price, &p.Stock,
			&p.Category, &image, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
			&vendorID, &vendorName, &vendorEmail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Image = image.String
		p.Vendor = vendorSummary(vendorID, vendorName, vendorEmail)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return products, nil
}

func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if p.ID <= 0 {
		return fmt.Errorf("%w: product id must be positive", ErrInvalidInput)
	}

	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, stock = ?, category = ?,
		    image = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Stock, p.Category,
		nullableString(p.Image), p.IsActive, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		// Zero rows can also mean a no-change write; verify existence.
		if _, err := r.GetByID(ctx, p.ID); err != nil {
			return err
		}
	}
	p.UpdatedAt = now
	return nil
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: product id must be positive", ErrInvalidInput)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// vendorSummary builds the embedded owner summary, or nil when the
// owning account has been deleted.
func vendorSummary(id sql.NullInt64, name, email sql.NullString) *models.UserSummary {
	if !id.Valid {
		return nil
	}
	return &models.UserSummary{ID: id.Int64, Name: name.String, Email: email.String}
}
