package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"subscribe/internal/model"
)

type UserRepository interface {
	// CreateUser inserts u unless a profile already exists, and loads the stored row into u.
	CreateUser(ctx context.Context, u *model.UserProfile) error
	GetUserByID(ctx context.Context, id string) (*model.UserProfile, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.UserProfile, error)
	UpdateProfile(ctx context.Context, u *model.UserProfile) error
	// IncrementFreeScans adds one consumed free scan in a single statement.
	IncrementFreeScans(ctx context.Context, userID string) error
	SetPremium(ctx context.Context, userID string, premium bool) error
	UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `user_id, email, name, avatar_url, phone, is_premium, free_scans_used, stripe_customer_id, created_at, updated_at`

func scanUser(row rowScanner) (*model.UserProfile, error) {
	var u model.UserProfile
	if err := row.Scan(&u.UserID, &u.Email, &u.Name, &u.AvatarURL, &u.Phone, &u.IsPremium, &u.FreeScansUsed, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.UserProfile) error {
	query := `INSERT INTO user_profiles (user_id, name, email, avatar_url)
              VALUES ($1, $2, $3, $4)
              ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
              RETURNING ` + userColumns
	stored, err := scanUser(r.db.QueryRowContext(ctx, query, u.UserID, u.Name, u.Email, u.AvatarURL))
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.UserID, err)
	}
	*u = *stored
	return nil
}

// GetUserByID returns nil, nil when the user has no profile yet.
func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM user_profiles WHERE user_id=$1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM user_profiles WHERE stripe_customer_id=$1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, u *model.UserProfile) error {
	query := `UPDATE user_profiles SET name=$2, avatar_url=$3, phone=$4, updated_at=NOW()
              WHERE user_id=$1
              RETURNING ` + userColumns
	stored, err := scanUser(r.db.QueryRowContext(ctx, query, u.UserID, u.Name, u.AvatarURL, u.Phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update user %s: %w", u.UserID, err)
	}
	*u = *stored
	return nil
}

func (r *userRepo) IncrementFreeScans(ctx context.Context, userID string) error {
	return r.execOne(ctx, `UPDATE user_profiles SET free_scans_used = free_scans_used + 1, updated_at=NOW() WHERE user_id=$1`, userID)
}

func (r *userRepo) SetPremium(ctx context.Context, userID string, premium bool) error {
	return r.execOne(ctx, `UPDATE user_profiles SET is_premium=$2, updated_at=NOW() WHERE user_id=$1`, userID, premium)
}

func (r *userRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	return r.execOne(ctx, `UPDATE user_profiles SET stripe_customer_id=$2, updated_at=NOW() WHERE user_id=$1`, userID, customerID)
}

func (r *userRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
