package repositories

import (
	"context"
	"path/filepath"
	"route-validation-service/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSqliteCreatesDirectoryAndSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "data", "runs.db")

	repo, closeFn, err := Open(config.StorageConfig{Driver: config.StorageSqlite, DBPath: path})
	require.NoError(t, err)
	defer closeFn()

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpenNoneReturnsNilRepository(t *testing.T) {
	repo, closeFn, err := Open(config.StorageConfig{Driver: config.StorageNone})
	require.NoError(t, err)
	assert.Nil(t, repo)
	assert.NoError(t, closeFn())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, _, err := Open(config.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}
