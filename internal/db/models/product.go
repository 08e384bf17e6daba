package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Field names for product model
const (
	ProductRequestIDField         = "request_id"
	ProductRowIndexField          = "row_index"
	ProductStatusField            = "status"
	ProductProcessedImageURLField = "processed_image_url"
	ProductErrorField             = "error"
)

// ProductStatus is the outcome of one input row
type ProductStatus string

// Product status constants
const (
	// ProductStatusPending marks a row that has been persisted but not reduced yet
	ProductStatusPending ProductStatus = "PENDING"
	// ProductStatusCompleted means every image of the row was processed
	ProductStatusCompleted ProductStatus = "COMPLETED"
	// ProductStatusPartial means some, but not all, images were processed
	ProductStatusPartial ProductStatus = "PARTIAL"
	// ProductStatusFailed means no image of the row was processed
	ProductStatusFailed ProductStatus = "FAILED"
)

// Product is the persisted record of one CSV row of a job
type Product struct {
	gorm.Model
	RequestID string `json:"request_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_product_row"`
	// RowIndex is the zero-based position of the row in the input file
	RowIndex  int    `json:"row_index" gorm:"not null;uniqueIndex:idx_product_row"`
	ProductID string `json:"product_id" gorm:"type:varchar(100);not null"`
	// ImageURL is the raw, possibly comma separated, cell value
	ImageURL          string        `json:"image_url" gorm:"type:text"`
	ProcessedImageURL string        `json:"processed_image_url" gorm:"type:text"`
	Status            ProductStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Error             string        `json:"error,omitempty" gorm:"type:text"`
}

// ProductUpdate carries the reduced result of a row
type ProductUpdate struct {
	Status            ProductStatus
	ProcessedImageURL string
	Error             string
}

// String returns the string representation of the product status
func (s ProductStatus) String() string {
	return string(s)
}

// ParseProductStatus converts a string to a ProductStatus
func ParseProductStatus(str string) (ProductStatus, error) {
	switch ProductStatus(str) {
	case ProductStatusPending, ProductStatusCompleted, ProductStatusPartial, ProductStatusFailed:
		return ProductStatus(str), nil
	default:
		return "", fmt.Errorf("invalid product status: %s", str)
	}
}

// BeforeCreate is a GORM hook that runs before creating a new product
func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.Status == "" {
		p.Status = ProductStatusPending
	}
	if p.RequestID == "" {
		return fmt.Errorf("product request id cannot be empty")
	}
	return nil
}
