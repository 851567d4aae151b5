package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore_FindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewUserStore(db)

	mock.ExpectQuery(`SELECT id::text, email, password_hash\s+FROM admin_users`).
		WithArgs("owner@clinic.in").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}).
			AddRow("5b0c", "owner@clinic.in", "$2a$hash"))

	user, err := store.FindByEmail(context.Background(), "  Owner@Clinic.in ")
	require.NoError(t, err)
	assert.Equal(t, "5b0c", user.ID)
	assert.Equal(t, "$2a$hash", user.PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_FindByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM admin_users`).
		WithArgs("nobody@clinic.in").
		WillReturnError(sql.ErrNoRows)

	_, err = NewUserStore(db).FindByEmail(context.Background(), "nobody@clinic.in")
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_FindByEmailWrapsDriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery(`FROM admin_users`).WillReturnError(boom)

	_, err = NewUserStore(db).FindByEmail(context.Background(), "owner@clinic.in")
	assert.ErrorIs(t, err, boom)
}

func TestUserStore_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO admin_users \(email, password_hash\)`).
		WithArgs("owner@clinic.in", "$2a$hash").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("5b0c"))

	id, err := NewUserStore(db).Upsert(context.Background(), "OWNER@clinic.in", "$2a$hash")
	require.NoError(t, err)
	assert.Equal(t, "5b0c", id)
	require.NoError(t, mock.ExpectationsWereMet())
}
