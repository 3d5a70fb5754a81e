package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"beerich/internal/cache"
	"beerich/internal/errors"
	"beerich/internal/model"
	"beerich/internal/repository"
	"beerich/internal/upload"
)

// InvoiceService handles income operations scoped to the owning user. It
// mirrors ExpenseService over the invoice table.
type InvoiceService interface {
	List(ctx context.Context, userID uuid.UUID, query string) ([]model.Invoice, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*model.Invoice, error)
	Create(ctx context.Context, userID uuid.UUID, input RecordInput) (*model.Invoice, error)
	Update(ctx context.Context, id, userID uuid.UUID, input RecordInput) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type invoiceService struct {
	repo        repository.InvoiceRepository
	cache       *cache.Client
	attachments *upload.Storage
}

// NewInvoiceService creates a new invoice service.
func NewInvoiceService(repo repository.InvoiceRepository, cache *cache.Client, attachments *upload.Storage) InvoiceService {
	return &invoiceService{
		repo:        repo,
		cache:       cache,
		attachments: attachments,
	}
}

func (s *invoiceService) cacheKey(id, userID uuid.UUID) string {
	return fmt.Sprintf("invoice:%s:%s", userID.String(), id.String())
}

// List returns the user's invoices ordered by creation time, newest first.
func (s *invoiceService) List(ctx context.Context, userID uuid.UUID, query string) ([]model.Invoice, error) {
	return s.repo.FindAllByUser(ctx, userID, strings.TrimSpace(query))
}

// Get retrieves one invoice by (id, userId) with caching.
func (s *invoiceService) Get(ctx context.Context, id, userID uuid.UUID) (*model.Invoice, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id, userID)); data != nil {
		var cached model.Invoice
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	invoice, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrInvoiceNotFound
		}
		return nil, err
	}

	if payload, err := json.Marshal(invoice); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id, userID), payload, recordCacheTTL)
	}
	return invoice, nil
}

// Create validates input and persists a new invoice for the user.
func (s *invoiceService) Create(ctx context.Context, userID uuid.UUID, input RecordInput) (*model.Invoice, error) {
	amount, err := parseAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	invoice := &model.Invoice{
		UserID:       userID,
		Title:        input.Title,
		Description:  input.Description,
		Amount:       amount,
		CurrencyCode: currencyOrDefault(input.CurrencyCode),
	}
	if input.Attachment != "" {
		attachment := input.Attachment
		invoice.Attachment = &attachment
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return invoice, nil
}

// Update validates input and persists changes scoped by (id, userId).
// Attachments follow the same set-if-absent rule as expenses.
func (s *invoiceService) Update(ctx context.Context, id, userID uuid.UUID, input RecordInput) error {
	amount, err := parseAmount(input.Amount)
	if err != nil {
		return err
	}

	existing, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrInvoiceNotFound
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
			return errors.ErrInvoiceNotFound
		}
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id, userID))
	return nil
}

// Delete removes an invoice scoped by (id, userId), along with its stored
// attachment file.
func (s *invoiceService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	existing, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrInvoiceNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrInvoiceNotFound
		}
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id, userID))

	if existing.Attachment != nil && s.attachments != nil {
		_ = s.attachments.Remove(userID.String(), *existing.Attachment)
	}
	return nil
}
