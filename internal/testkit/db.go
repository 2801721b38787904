// Package testkit holds helpers shared by package tests.
package testkit

import (
	"fmt"
	"testing"

	"bonus-hunt/internal/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewDB returns a private in-memory sqlite database with the schema
// migrated. The database is dropped when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
