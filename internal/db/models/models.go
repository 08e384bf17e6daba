// Package models holds the gorm models persisted by the service
package models

const (
	// DefaultLimit is the max number of rows that are retrieved from the DB per listing call
	DefaultLimit = 50
)

// ListOptions represents pagination options for list operations
type ListOptions struct {
	Limit  int `json:"limit"`  // Number of items to return
	Offset int `json:"offset"` // Number of items to skip
}

// All returns every model that has to be migrated
func All() []interface{} {
	return []interface{}{
		&Job{},
		&Product{},
	}
}
