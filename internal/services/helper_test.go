package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
	"github.com/eresh-mittal/ImageProc/internal/db/repos"
)

// TestSetup contains common test dependencies
type TestSetup struct {
	DB          *gorm.DB
	JobRepo     *repos.JobRepository
	ProductRepo *repos.ProductRepository
	UploadDir   string
	ctx         context.Context
}

// NewTestSetup creates a new test setup backed by a temporary SQLite file
func NewTestSetup(t *testing.T) *TestSetup {
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "services.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to create database")
	require.NoError(t, db.AutoMigrate(models.All()...), "Failed to run migrations")

	ts := &TestSetup{
		DB:          db,
		JobRepo:     repos.NewJobRepository(db),
		ProductRepo: repos.NewProductRepository(db),
		UploadDir:   filepath.Join(dir, "uploads"),
		ctx:         context.Background(),
	}
	t.Cleanup(ts.CleanUp)
	return ts
}

// CleanUp closes the database
func (ts *TestSetup) CleanUp() {
	sqlDB, err := ts.DB.DB()
	if err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
}

type fakeDispatcher struct {
	mu      sync.Mutex
	wakes   int
	running map[string]bool
	aborted []string
}

func (d *fakeDispatcher) Wake() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wakes++
}

func (d *fakeDispatcher) Abort(requestID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running[requestID] {
		d.aborted = append(d.aborted, requestID)
		return true
	}
	return false
}
