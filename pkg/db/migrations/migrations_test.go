package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/viewsync/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrations.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestMigrator_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	migrator := NewMigrator(db)

	require.NoError(t, migrator.Migrate(ctx))
	require.NoError(t, migrator.Migrate(ctx))

	assert.True(t, db.Migrator().HasTable(&models.Entry{}))

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, status := range statuses {
		assert.True(t, status.Applied, "migration %d", status.Version)
	}

	var count int64
	require.NoError(t, db.Model(&appliedMigration{}).Count(&count).Error)
	assert.Equal(t, int64(len(statuses)), count)
}

func TestMigrator_Rollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	migrator := NewMigrator(db)

	require.NoError(t, migrator.Migrate(ctx))
	require.NoError(t, migrator.Rollback(ctx))

	assert.False(t, db.Migrator().HasTable(&models.Entry{}))

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	assert.False(t, statuses[0].Applied)

	assert.Error(t, migrator.Rollback(ctx), "nothing left to roll back")
}
