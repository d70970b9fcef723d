package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetryRetriesSerializationFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err = WithRetry(context.Background(), db, SerializableTxOptions(), func(tx *sql.Tx) error {
		attempts++
		if attempts == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err = WithRetry(context.Background(), db, SerializableTxOptions(), func(tx *sql.Tx) error {
		attempts++
		return ErrOrderNotFound
	})

	assert.True(t, errors.Is(err, ErrOrderNotFound))
	assert.Equal(t, 1, attempts)
}

func TestWithRetryGivesUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	opts := TxOptions{IsolationLevel: sql.LevelSerializable, MaxRetries: 1}
	for i := 0; i <= opts.MaxRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	err = WithRetry(context.Background(), db, opts, func(tx *sql.Tx) error {
		return &pq.Error{Code: "40P01"}
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
	assert.True(t, IsRetryable(err))
}
