package tokenstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailcal/internal/token"
)

func setupPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db, nil), mock
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Migrate", func(t *testing.T) {
		s, mock := setupPostgres(t)
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS session_tokens`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, s.Migrate(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LoadFound", func(t *testing.T) {
		s, mock := setupPostgres(t)
		data, err := token.Marshal(testBundle())
		require.NoError(t, err)
		mock.ExpectQuery(`SELECT record FROM session_tokens`).
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow(string(data)))

		b, err := s.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "ya29.access", b.AccessToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LoadMissing", func(t *testing.T) {
		s, mock := setupPostgres(t)
		mock.ExpectQuery(`SELECT record FROM session_tokens`).
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{"record"}))

		_, err := s.Load(ctx, "s1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("LoadMalformed", func(t *testing.T) {
		s, mock := setupPostgres(t)
		mock.ExpectQuery(`SELECT record FROM session_tokens`).
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow("garbage"))

		_, err := s.Load(ctx, "s1")
		assert.ErrorIs(t, err, token.ErrMalformed)
	})

	t.Run("LoadDatabaseError", func(t *testing.T) {
		s, mock := setupPostgres(t)
		mock.ExpectQuery(`SELECT record FROM session_tokens`).
			WithArgs("s1").
			WillReturnError(sqlmock.ErrCancelled)

		_, err := s.Load(ctx, "s1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("Replace", func(t *testing.T) {
		s, mock := setupPostgres(t)
		mock.ExpectExec(`INSERT INTO session_tokens`).
			WithArgs("s1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Replace(ctx, "s1", testBundle()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Delete", func(t *testing.T) {
		s, mock := setupPostgres(t)
		mock.ExpectExec(`DELETE FROM session_tokens`).
			WithArgs("s1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, s.Delete(ctx, "s1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
