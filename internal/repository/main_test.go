package repository

import (
	"fmt"
	"testing"
	"time"

	"quickblog/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory SQLite database with the posts schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Post{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return gormDB, mock
}

func seedPost(t *testing.T, db *gorm.DB, title, slug, category string, published bool, age time.Duration) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:       title,
		Description: "About " + title,
		Category:    category,
		Image:       "https://media.example.com/" + slug + ".png?tr=q-auto,f-webp,w-1280",
		IsPublished: published,
		Slug:        slug,
		CreatedAt:   time.Now().Add(-age),
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
