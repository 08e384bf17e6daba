// Package test provides utilities for setting up and running tests
package test

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eresh-mittal/ImageProc/internal/db"
	"github.com/eresh-mittal/ImageProc/internal/db/repos"
)

// NewFileBasedTestDB creates a new file-based SQLite database for testing.
// It returns the migrated database connection and the path to the temporary directory.
func NewFileBasedTestDB() (*gorm.DB, string, error) {
	tmpDir, err := os.MkdirTemp("", "imageproc_test")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create temporary directory: %w", err)
	}
	database, err := db.New(db.Options{
		Driver:   db.DriverSQLite,
		Path:     filepath.Join(tmpDir, "imageproc_test.db"),
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		// Try to clean up the temporary directory, but don't fail if cleanup fails
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			fmt.Printf("Warning: failed to remove temporary directory after database error: %v\n", rmErr)
		}
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	return database, tmpDir, nil
}

// CleanupTestDB closes the database connection and removes the temporary directory.
func CleanupTestDB(database *gorm.DB, tmpDir string) {
	sqlDB, err := database.DB()
	if err == nil && sqlDB != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			fmt.Printf("Error closing database connection: %v\n", closeErr)
		}
	}
	if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
		fmt.Printf("Error removing temporary directory: %v\n", rmErr)
	}
}

// SetupTestDB configures the test suite with a new file-based database.
// Upload and artifact directories are created next to it.
func SetupTestDB(suite *Suite) {
	dbConn, tmpDir, err := NewFileBasedTestDB()
	suite.Require().NoError(err, "Failed to create file-based database")
	suite.DB = dbConn
	suite.DataDir = tmpDir

	suite.addCleanup(func() {
		CleanupTestDB(suite.DB, tmpDir)
	})

	suite.JobRepo = repos.NewJobRepository(suite.DB)
	suite.ProductRepo = repos.NewProductRepository(suite.DB)
}
