package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationURLUsesPgxScheme(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/feedpos?sslmode=disable", migrationURL("postgres://u:p@db:5432/feedpos?sslmode=disable"))
	assert.Equal(t, "pgx5://db/feedpos", migrationURL("postgresql://db/feedpos"))
	assert.Equal(t, "pgx5://db/feedpos", migrationURL("pgx5://db/feedpos"))
}
