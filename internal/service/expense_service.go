package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"beerich/internal/cache"
	"beerich/internal/errors"
	"beerich/internal/model"
	"beerich/internal/repository"
	"beerich/internal/upload"
)

const recordCacheTTL = 5 * time.Minute

// RecordInput carries the decoded form fields for creating or updating an
// expense or invoice. Amount arrives as raw user input and is parsed here.
type RecordInput struct {
	Title        string
	Description  string
	Amount       string
	CurrencyCode string
	Attachment   string
}

// ExpenseService handles expense operations scoped to the owning user.
type ExpenseService interface {
	List(ctx context.Context, userID uuid.UUID, query string) ([]model.Expense, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*model.Expense, error)
	Create(ctx context.Context, userID uuid.UUID, input RecordInput) (*model.Expense, error)
	Update(ctx context.Context, id, userID uuid.UUID, input RecordInput) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type expenseService struct {
	repo        repository.ExpenseRepository
	cache       *cache.Client
	attachments *upload.Storage
}

// NewExpenseService creates a new expense service.
func NewExpenseService(repo repository.ExpenseRepository, cache *cache.Client, attachments *upload.Storage) ExpenseService {
	return &expenseService{
		repo:        repo,
		cache:       cache,
		attachments: attachments,
	}
}

func (s *expenseService) cacheKey(id, userID uuid.UUID) string {
	return fmt.Sprintf("expense:%s:%s", userID.String(), id.String())
}

// List returns the user's expenses ordered by creation time, newest first.
func (s *expenseService) List(ctx context.Context, userID uuid.UUID, query string) ([]model.Expense, error) {
	return s.repo.FindAllByUser(ctx, userID, strings.TrimSpace(query))
}

// Get retrieves one expense by (id, userId) with caching.
func (s *expenseService) Get(ctx context.Context, id, userID uuid.UUID) (*model.Expense, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id, userID)); data != nil {
		var cached model.Expense
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	expense, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrExpenseNotFound
		}
		return nil, err
	}

	if payload, err := json.Marshal(expense); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id, userID), payload, recordCacheTTL)
	}
	return expense, nil
}

// Create validates input and persists a new expense for the user.
func (s *expenseService) Create(ctx context.Context, userID uuid.UUID, input RecordInput) (*model.Expense, error) {
	amount, err := parseAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	expense := &model.Expense{
		UserID:       userID,
		Title:        input.Title,
		Description:  input.Description,
		Amount:       amount,
		CurrencyCode: currencyOrDefault(input.CurrencyCode),
	}
	if input.Attachment != "" {
		attachment := input.Attachment
		expense.Attachment = &attachment
	}
	if err := s.repo.Create(ctx, expense); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return expense, nil
}

// Update validates input and persists changes scoped by (id, userId). An
// attachment is only stored when the record has none yet; the edit surface
// has no replace-in-place path.
func (s *expenseService) Update(ctx context.Context, id, userID uuid.UUID, input RecordInput) error {
	amount, err := parseAmount(input.Amount)
	if err != nil {
		return err
	}

	existing, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrExpenseNotFound
		}
		return err
	}

	fields := map[string]interface{}{
		"title":       input.Title,
		"description": input.Description,
		"amount":      amount,
	}
	if input.Attachment != "" && existing.Attachment == nil {
		fields["attachment"] = input.Attachment
	}

	if err := s.repo.Update(ctx, id, userID, fields); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrExpenseNotFound
		}
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id, userID))
	return nil
}

// Delete removes an expense scoped by (id, userId), along with its stored
// attachment file.
func (s *expenseService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	existing, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrExpenseNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrExpenseNotFound
		}
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id, userID))

	if existing.Attachment != nil && s.attachments != nil {
		// Best effort; the row is already gone. The owner scoping means this
		// can only ever touch the deleting user's own files.
		_ = s.attachments.Remove(userID.String(), *existing.Attachment)
	}
	return nil
}

// parseAmount parses user input into a finite decimal amount.
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errors.NewInvalidInput(map[string]string{
			"amount": "must be a valid number",
		})
	}
	return amount, nil
}

func currencyOrDefault(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "USD"
	}
	return code
}
