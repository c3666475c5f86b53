package assets

import (
	"context"
	"testing"
	"time"

	"github.com/agjmills/assetadmin/internal/database"
	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/agjmills/assetadmin/internal/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.Options(gormlogger.Silent))
	require.NoError(t, err)

	// Every pooled connection to ":memory:" would open its own database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func setupTestService(t *testing.T, opts Options) (*Service, *storage.MemoryBackend) {
	t.Helper()
	blobs := storage.NewMemoryBackend()
	return NewService(setupTestDB(t), blobs, opts), blobs
}

func newUser(id uint, admin bool, perms ...string) *models.User {
	return &models.User{ID: id, IsAdmin: admin, Permissions: datatypes.NewJSONType(perms)}
}

var (
	adminUser  = newUser(1, true)
	editorUser = newUser(2, false, models.PermAccessAssets, models.PermCreateAssets, models.PermEditAssets, models.PermDeleteAssets)
	viewerUser = newUser(3, false, models.PermAccessAssets)
)

// seed inserts a record directly, bypassing name allocation.
func seed(t *testing.T, s *Service, a models.Asset) models.Asset {
	t.Helper()
	if a.Title == "" {
		a.Title = a.Name
	}
	if a.Filename == "" {
		a.Filename = a.Name
	}
	require.NoError(t, s.store.Create(context.Background(), &a))
	return a
}

func names(records []models.Asset) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}
