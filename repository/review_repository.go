package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"marketplace/models"
)

type reviewRepo struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepo{db: db}
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	return nil
}

func (r *reviewRepo) Create(ctx context.Context, rev *models.Review) error {
	if err := validateRating(rev.Rating); err != nil {
		return err
	}
	if rev.ProductID <= 0 || rev.CustomerID <= 0 {
		return fmt.Errorf("%w: product and customer ids are required", ErrInvalidInput)
	}

	now := time.Now()
	rev.CreatedAt = now
	rev.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (product_id, customer_id, rating, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rev.ProductID, rev.CustomerID, rev.Rating, rev.Comment, rev.CreatedAt, rev.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == duplicateEntryCode {
			return fmt.Errorf("%w: you already reviewed this product", ErrDuplicate)
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	rev.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get review id: %w", err)
	}
	return nil
}

func (r *reviewRepo) GetByID(ctx context.Context, id int64) (*models.Review, error) {
	var rev models.Review
	var comment sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, product_id, customer_id, rating, comment, created_at, updated_at
		FROM reviews WHERE id = ?`, id,
	).Scan(&rev.ID, &rev.ProductID, &rev.CustomerID, &rev.Rating, &comment, &rev.CreatedAt, &rev.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review %d: %w", id, err)
	}
	rev.Comment = comment.String
	return &rev, nil
}

func (r *reviewRepo) ListByProduct(ctx context.Context, productID int64) ([]models.Review, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rv.id, rv.product_id, rv.customer_id, rv.rating, rv.comment,
		       rv.created_at, rv.updated_at,
		       u.id, u.name, u.email
		FROM reviews rv
		JOIN users u ON u.id = rv.customer_id
		WHERE rv.product_id = ?
		ORDER BY rv.created_at DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var rev models.Review
		var comment sql.NullString
		var customer models.UserSummary
		if err := rows.Scan(
			&rev.ID, &rev.ProductID, &rev.CustomerID, &rev.Rating, &comment,
			&rev.CreatedAt, &rev.UpdatedAt,
			&customer.ID, &customer.Name, &customer.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		rev.Comment = comment.String
		rev.Customer = &customer
		reviews = append(reviews, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return reviews, nil
}

func (r *reviewRepo) Update(ctx context.Context, rev *models.Review) error {
	if err := validateRating(rev.Rating); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE reviews SET rating = ?, comment = ?, updated_at = ? WHERE id = ?`,
		rev.Rating, rev.Comment, time.Now(), rev.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update review %d: %w", rev.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, rev.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *reviewRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review %d: %w", id, err)
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
