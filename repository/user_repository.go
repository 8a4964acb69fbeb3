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

type userRepo struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepo{db: db}
}

const duplicateEntryCode = 1062

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	if u.Name == "" || u.Email == "" {
		return fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("%w: password hash is required", ErrInvalidInput)
	}

	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash, role, is_approved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.PasswordHash, u.Role.String(), u.IsApproved, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == duplicateEntryCode {
			return fmt.Errorf("%w: email already registered", ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email = ?", email)
}

func (r *userRepo) getBy(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var u models.User
	var role string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, is_approved, created_at, updated_at
		FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Role, err = models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("stored role corrupt for user %d: %w", u.ID, err)
	}
	return &u, nil
}

func (r *userRepo) ListVendors(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, role, is_approved, created_at, updated_at
		FROM users WHERE role = ? ORDER BY created_at DESC`,
		models.RoleVendor.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []models.User
	for rows.Next() {
		var u models.User
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		u.Role, err = models.ParseRole(role)
		if err != nil {
			return nil, fmt.Errorf("stored role corrupt for user %d: %w", u.ID, err)
		}
		vendors = append(vendors, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return vendors, nil
}

// Approve flips the approval flag on a vendor account. Non-vendor ids
// resolve to ErrNotFound so the admin API never leaks other accounts.
func (r *userRepo) Approve(ctx context.Context, id int64) (*models.User, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_approved = TRUE, updated_at = ?
		WHERE id = ? AND role = ?`,
		time.Now(), id, models.RoleVendor.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to approve vendor %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check approval result: %w", err)
	}
	if affected == 0 {
		// Distinguish "unknown vendor" from "already approved".
		u, err := r.GetByID(ctx, id)
		if err != nil || u.Role != models.RoleVendor {
			return nil, ErrNotFound
		}
		return u, nil
	}
	return r.GetByID(ctx, id)
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = ? AND role = ?`,
		id, models.RoleVendor.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete vendor %d: %w", id, err)
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
