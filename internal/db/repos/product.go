package repos

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
)

// ProductRepository handles database operations for job rows
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create persists a row record
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateResult stores the reduced outcome of a row
func (r *ProductRepository) UpdateResult(ctx context.Context, requestID string, rowIndex int, upd models.ProductUpdate) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where(models.ProductRequestIDField+" = ? AND "+models.ProductRowIndexField+" = ?", requestID, rowIndex).
		Updates(map[string]interface{}{
			models.ProductStatusField:            upd.Status,
			models.ProductProcessedImageURLField: upd.ProcessedImageURL,
			models.ProductErrorField:             upd.Error,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product row %d of job %s not found: %w", rowIndex, requestID, gorm.ErrRecordNotFound)
	}
	return nil
}

// Count returns the number of rows of a job, optionally restricted to one status
func (r *ProductRepository) Count(ctx context.Context, requestID string, status *models.ProductStatus) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Product{}).
		Where(models.ProductRequestIDField+" = ?", requestID)
	if status != nil {
		query = query.Where(models.ProductStatusField+" = ?", *status)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// ListByRequest returns the rows of a job in input order
func (r *ProductRepository) ListByRequest(ctx context.Context, requestID string, opts *models.ListOptions) ([]models.Product, error) {
	var products []models.Product
	query := r.db.WithContext(ctx).
		Where(models.ProductRequestIDField+" = ?", requestID).
		Order(models.ProductRowIndexField + " ASC")
	if opts != nil {
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		query = query.Offset(opts.Offset)
	}
	if err := query.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}
