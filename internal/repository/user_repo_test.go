package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscribe/internal/model"
)

var userRowColumns = []string{
	"user_id", "email", "name", "avatar_url", "phone", "is_premium",
	"free_scans_used", "stripe_customer_id", "created_at", "updated_at",
}

func TestUserRepoCreateUserReturnsStoredRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO user_profiles (.+) ON CONFLICT \(user_id\)`).
		WithArgs("user-1", "Ada", "ada@example.com", "").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("user-1", "ada@example.com", "Ada", "", nil, true, 1, nil, now, now))

	u := &model.UserProfile{UserID: "user-1", Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	assert.True(t, u.IsPremium)
	assert.Equal(t, 1, u.FreeScansUsed)
}

func TestUserRepoGetUserByIDMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(`SELECT (.+) FROM user_profiles WHERE user_id=\$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetUserByID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepoIncrementFreeScans(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(`UPDATE user_profiles SET free_scans_used = free_scans_used \+ 1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementFreeScans(context.Background(), "user-1"))
}

func TestUserRepoSetPremiumUnknownUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(`UPDATE user_profiles SET is_premium=\$2`).
		WithArgs("ghost", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetPremium(context.Background(), "ghost", true), ErrNotFound)
}

func TestUserRepoGetUserByStripeCustomerID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE stripe_customer_id=\$1`).
		WithArgs("cus_123").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("user-1", "ada@example.com", "Ada", "", "+15550100", false, 0, "cus_123", now, now))

	u, err := repo.GetUserByStripeCustomerID(context.Background(), "cus_123")
	require.NoError(t, err)
	require.NotNil(t, u.StripeCustomerID)
	assert.Equal(t, "cus_123", *u.StripeCustomerID)
	require.NotNil(t, u.Phone)
}
