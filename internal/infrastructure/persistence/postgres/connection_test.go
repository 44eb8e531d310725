package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "localhost"
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=postgres user=postgres password=secret sslmode=disable connect_timeout=10",
		cfg.DSN())

	cfg.URL = "postgres://u:p@db:5432/progress"
	assert.Equal(t, "postgres://u:p@db:5432/progress", cfg.DSN())
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("op", nil, shared.ErrNotFound))

	err := mapError("GetQuest", pgx.ErrNoRows, shared.ErrQuestNotFound)
	assert.True(t, shared.IsNotFound(err))

	for _, code := range []string{"40001", "40P01"} {
		err = mapError("Increment", &pgconn.PgError{Code: code}, nil)
		assert.True(t, shared.IsStorageConflict(err), code)
	}

	err = mapError("CreateDaily", &pgconn.PgError{Code: "23505"}, nil)
	assert.True(t, shared.IsAlreadyExists(err))
	assert.True(t, IsUniqueViolation(err))

	err = mapError("AddProgress", &pgconn.PgError{Code: "23514"}, nil)
	assert.True(t, shared.IsValidation(err))

	plain := errors.New("boom")
	err = mapError("Get", plain, nil)
	assert.ErrorIs(t, err, plain)
	assert.False(t, shared.IsStorageConflict(err))
}
