package tokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ = `(?s)^\s*INSERT\s+INTO\s+credential_tokens\s*\(account_id,\s*token,\s*kind,\s*created_at,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id\s*$`
	findQ   = `(?s)^\s*SELECT\s+id,\s*account_id,\s*token,\s*kind,.*FROM\s+credential_tokens\s+WHERE\s+token\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	markQ   = `(?s)^\s*UPDATE\s+credential_tokens\s+SET\s+is_used\s*=\s*TRUE,\s*used_at\s*=\s*\$2,\s*ip_address\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s+AND\s+is_used\s*=\s*FALSE\s*$`
	countQ  = `(?s)^\s*SELECT\s+COUNT\(\*\)\s+FROM\s+credential_tokens\s+WHERE\s+is_used\s*=\s*FALSE\s+AND\s+expires_at\s*<=\s*\$1\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := &models.CredentialToken{
		AccountID: 7, Token: "abc", Kind: models.TokenKindReset,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectQuery(insertQ).
		WithArgs(int64(7), "abc", "reset", now, now.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	require.NoError(t, repo.Create(context.Background(), tok))
	assert.Equal(t, int64(11), tok.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Collision(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.CredentialToken{Token: "abc"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.CredentialToken{Token: "abc"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindForUpdate_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "account_id", "token", "kind", "created_at", "expires_at", "is_used", "used_at", "ip_address"}).
		AddRow(int64(11), int64(7), "abc", "confirmation", now, now.Add(24*time.Hour), false, nil, "")
	mock.ExpectQuery(findQ).WithArgs("abc").WillReturnRows(rows)

	got, err := repo.FindForUpdate(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, int64(7), got.AccountID)
	assert.Equal(t, models.TokenKindConfirmation, got.Kind)
	assert.False(t, got.IsUsed)
	assert.Nil(t, got.UsedAt)
}

func TestFindForUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindForUpdate(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindForUpdate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).WithArgs("abc").WillReturnError(errors.New("db err"))

	_, err := repo.FindForUpdate(context.Background(), "abc")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestMarkUsed(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("flips unused token", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(markQ).WithArgs(int64(11), now, "1.2.3.4").WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.MarkUsed(context.Background(), 11, now, "1.2.3.4"))
	})

	t.Run("already used", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(markQ).WillReturnResult(sqlmock.NewResult(0, 0))
		err := repo.MarkUsed(context.Background(), 11, now, "")
		assert.ErrorIs(t, err, common.ErrTokenAlreadyUsed)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(markQ).WillReturnError(errors.New("db err"))
		err := repo.MarkUsed(context.Background(), 11, now, "")
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrTokenAlreadyUsed)
	})

	t.Run("rows affected error", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectExec(markQ).WillReturnResult(sqlmock.NewErrorResult(errors.New("ra")))
		err := repo.MarkUsed(context.Background(), 11, now, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rows affected")
	})
}

func TestCountExpiredUnused(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(countQ).WithArgs(now).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))
	mock.ExpectQuery(countQ).WithArgs(now).WillReturnError(errors.New("db err"))

	n, err := repo.CountExpiredUnused(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = repo.CountExpiredUnused(context.Background(), now)
	require.Error(t, err)
}
