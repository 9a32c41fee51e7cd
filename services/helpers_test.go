package services_test

import (
	"path/filepath"
	"testing"

	"countrypulse/models"
	"countrypulse/storage"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Country{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return storage.New(db)
}

func strPtr(s string) *string   { return &s }
func intPtr(i int64) *int64     { return &i }
func fltPtr(f float64) *float64 { return &f }
