// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB returns a migrated in-memory database private to the test.
// It holds a single connection, so code under test must run transactional
// statements on the transaction handle.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateAccount inserts an account with a username derived from name.
func CreateAccount(t testing.TB, db *gorm.DB, name string) *models.Account {
	t.Helper()
	acc := &models.Account{
		Username: name,
		Fullname: name + " Example",
		Email:    name + "@example.com",
	}
	require.NoError(t, db.Create(acc).Error)
	return acc
}

// CreatePost inserts a post by authorID. Published posts get a PublishedAt timestamp.
func CreatePost(t testing.TB, db *gorm.DB, authorID uint, title string, published bool) *models.Post {
	t.Helper()
	post := &models.Post{
		Slug:        fmt.Sprintf("%s-%d", title, time.Now().UnixNano()),
		Title:       title,
		Description: "about " + title,
		Content:     "content of " + title,
		Tags:        models.Tags{"go"},
		AuthorID:    authorID,
		Draft:       !published,
	}
	if published {
		now := time.Now()
		post.PublishedAt = &now
	}
	require.NoError(t, db.Create(post).Error)
	return post
}
