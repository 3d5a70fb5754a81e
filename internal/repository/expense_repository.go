package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"beerich/internal/model"
)

// ExpenseRepository defines expense persistence operations. Every lookup and
// mutation is keyed by the composite (id, user_id) pair.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*model.Expense, error)
	FindAllByUser(ctx context.Context, userID uuid.UUID, query string) ([]model.Expense, error)
	Update(ctx context.Context, id, userID uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type expenseRepository struct {
	db *gorm.DB
}

// NewExpenseRepository creates a new expense repository.
func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

// Create creates a new expense.
func (r *expenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return r.db.WithContext(ctx).Create(expense).Error
}

// FindByIDAndUser finds an expense by its composite key.
func (r *expenseRepository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

// FindAllByUser lists a user's expenses ordered by creation time, newest
// first. A non-empty query filters by case-insensitive title substring.
func (r *expenseRepository) FindAllByUser(ctx context.Context, userID uuid.UUID, query string) ([]model.Expense, error) {
	var expenses []model.Expense
	tx := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if query != "" {
		tx = tx.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(query)+"%")
	}
	if err := tx.Order("created_at DESC").Find(&expenses).Error; err != nil {
		return nil, err
	}
	return expenses, nil
}

// Update updates an expense scoped by its composite key. A key miss is
// reported as gorm.ErrRecordNotFound.
func (r *expenseRepository) Update(ctx context.Context, id, userID uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Expense{}).
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

// Delete removes an expense scoped by its composite key. A key miss is
// reported as gorm.ErrRecordNotFound.
func (r *expenseRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Expense{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
