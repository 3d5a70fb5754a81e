package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"beerich/internal/model"
)

// InvoiceRepository defines invoice persistence operations, keyed like
// expenses by the composite (id, user_id) pair.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*model.Invoice, error)
	FindAllByUser(ctx context.Context, userID uuid.UUID, query string) ([]model.Invoice, error)
	Update(ctx context.Context, id, userID uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create creates a new invoice.
func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// FindByIDAndUser finds an invoice by its composite key.
func (r *invoiceRepository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindAllByUser lists a user's invoices ordered by creation time, newest
// first. A non-empty query filters by case-insensitive title substring.
func (r *invoiceRepository) FindAllByUser(ctx context.Context, userID uuid.UUID, query string) ([]model.Invoice, error) {
	var invoices []model.Invoice
	tx := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if query != "" {
		tx = tx.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(query)+"%")
	}
	if err := tx.Order("created_at DESC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// Update updates an invoice scoped by its composite key. A key miss is
// reported as gorm.ErrRecordNotFound.
func (r *invoiceRepository) Update(ctx context.Context, id, userID uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes an invoice scoped by its composite key. A key miss is
// reported as gorm.ErrRecordNotFound.
func (r *invoiceRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Invoice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
