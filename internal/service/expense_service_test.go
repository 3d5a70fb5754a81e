package service

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"beerich/internal/cache"
	apperrors "beerich/internal/errors"
	"beerich/internal/model"
	"beerich/internal/upload"
)

// MockExpenseRepository is a mock implementation of ExpenseRepository.
type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

func (m *MockExpenseRepository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*model.Expense, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Expense), args.Error(1)
}

func (m *MockExpenseRepository) FindAllByUser(ctx context.Context, userID uuid.UUID, query string) ([]model.Expense, error) {
	args := m.Called(ctx, userID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Expense), args.Error(1)
}

func (m *MockExpenseRepository) Update(ctx context.Context, id, userID uuid.UUID, fields map[string]interface{}) error {
	args := m.Called(ctx, id, userID, fields)
	return args.Error(0)
}

func (m *MockExpenseRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// noCache is a nil cache client; its methods degrade to misses.
var noCache *cache.Client

func TestExpenseService_Get(t *testing.T) {
	id := uuid.New()
	owner := uuid.New()
	stranger := uuid.New()
	expense := &model.Expense{ID: id, UserID: owner, Title: "Dinner", Amount: decimal.RequireFromString("42.50")}

	tests := []struct {
		name    string
		userID  uuid.UUID
		setup   func(repo *MockExpenseRepository)
		wantErr error
	}{
		{
			name:   "owner reads own expense",
			userID: owner,
			setup: func(repo *MockExpenseRepository) {
				repo.On("FindByIDAndUser", mock.Anything, id, owner).Return(expense, nil)
			},
		},
		{
			name:   "other user gets not found",
			userID: stranger,
			setup: func(repo *MockExpenseRepository) {
				repo.On("FindByIDAndUser", mock.Anything, id, stranger).Return(nil, gorm.ErrRecordNotFound)
			},
			wantErr: apperrors.ErrExpenseNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockExpenseRepository)
			tt.setup(repo)
			svc := NewExpenseService(repo, noCache, nil)

			got, err := svc.Get(context.Background(), id, tt.userID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "Dinner", got.Title)
				assert.True(t, got.Amount.Equal(decimal.RequireFromString("42.5")))
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestExpenseService_Update_InvalidAmountDoesNotMutate(t *testing.T) {
	repo := new(MockExpenseRepository)
	svc := NewExpenseService(repo, noCache, nil)

	err := svc.Update(context.Background(), uuid.New(), uuid.New(), RecordInput{
		Title:  "Dinner",
		Amount: "not-a-number",
	})

	inv, ok := apperrors.AsInvalidInput(err)
	assert.True(t, ok, "expected a typed InvalidInputError, got %v", err)
	assert.Contains(t, inv.Fields, "amount")
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "FindByIDAndUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestExpenseService_Update_FieldMapping(t *testing.T) {
	id := uuid.New()
	owner := uuid.New()
	attachment := "receipt.pdf"

	tests := []struct {
		name           string
		existing       *model.Expense
		input          RecordInput
		wantAttachment bool
	}{
		{
			name:           "attachment set when absent",
			existing:       &model.Expense{ID: id, UserID: owner},
			input:          RecordInput{Title: "Dinner", Amount: "42.50", Attachment: "new.pdf"},
			wantAttachment: true,
		},
		{
			name:           "attachment immutable once set",
			existing:       &model.Expense{ID: id, UserID: owner, Attachment: &attachment},
			input:          RecordInput{Title: "Dinner", Amount: "42.50", Attachment: "new.pdf"},
			wantAttachment: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockExpenseRepository)
			repo.On("FindByIDAndUser", mock.Anything, id, owner).Return(tt.existing, nil)
			repo.On("Update", mock.Anything, id, owner, mock.MatchedBy(func(fields map[string]interface{}) bool {
				if fields["title"] != "Dinner" {
					return false
				}
				amount, ok := fields["amount"].(decimal.Decimal)
				if !ok || !amount.Equal(decimal.RequireFromString("42.5")) {
					return false
				}
				_, hasAttachment := fields["attachment"]
				return hasAttachment == tt.wantAttachment
			})).Return(nil)

			svc := NewExpenseService(repo, noCache, nil)
			err := svc.Update(context.Background(), id, owner, tt.input)
			assert.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestExpenseService_Update_NotFound(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()

	repo := new(MockExpenseRepository)
	repo.On("FindByIDAndUser", mock.Anything, id, userID).Return(nil, gorm.ErrRecordNotFound)

	svc := NewExpenseService(repo, noCache, nil)
	err := svc.Update(context.Background(), id, userID, RecordInput{Title: "Dinner", Amount: "1"})
	assert.ErrorIs(t, err, apperrors.ErrExpenseNotFound)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExpenseService_Delete(t *testing.T) {
	id := uuid.New()
	userID := uuid.New()

	t.Run("delete existing", func(t *testing.T) {
		repo := new(MockExpenseRepository)
		repo.On("FindByIDAndUser", mock.Anything, id, userID).Return(&model.Expense{ID: id, UserID: userID}, nil)
		repo.On("Delete", mock.Anything, id, userID).Return(nil)

		svc := NewExpenseService(repo, noCache, nil)
		assert.NoError(t, svc.Delete(context.Background(), id, userID))
		repo.AssertExpectations(t)
	})

	t.Run("delete only removes the owner's copy of a shared filename", func(t *testing.T) {
		storage, err := upload.NewStorage(t.TempDir())
		require.NoError(t, err)

		victim := uuid.New()
		filename, err := storage.Save(victim.String(), "receipt.pdf", strings.NewReader("victim's receipt"))
		require.NoError(t, err)

		// Another user's record pointing at the same filename.
		name := filename
		repo := new(MockExpenseRepository)
		repo.On("FindByIDAndUser", mock.Anything, id, userID).
			Return(&model.Expense{ID: id, UserID: userID, Attachment: &name}, nil)
		repo.On("Delete", mock.Anything, id, userID).Return(nil)

		svc := NewExpenseService(repo, noCache, storage)
		require.NoError(t, svc.Delete(context.Background(), id, userID))

		path, err := storage.Path(victim.String(), filename)
		require.NoError(t, err)
		_, err = os.Stat(path)
		assert.NoError(t, err, "another user's file must survive the delete")
	})

	t.Run("stale reference maps to not found", func(t *testing.T) {
		repo := new(MockExpenseRepository)
		repo.On("FindByIDAndUser", mock.Anything, id, userID).Return(&model.Expense{ID: id, UserID: userID}, nil)
		repo.On("Delete", mock.Anything, id, userID).Return(gorm.ErrRecordNotFound)

		svc := NewExpenseService(repo, noCache, nil)
		err := svc.Delete(context.Background(), id, userID)
		assert.ErrorIs(t, err, apperrors.ErrExpenseNotFound)
	})
}

func TestExpenseService_Create(t *testing.T) {
	userID := uuid.New()

	t.Run("valid input", func(t *testing.T) {
		repo := new(MockExpenseRepository)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(e *model.Expense) bool {
			return e.UserID == userID &&
				e.Title == "Dinner" &&
				e.Amount.Equal(decimal.RequireFromString("42.5")) &&
				e.CurrencyCode == "USD"
		})).Return(nil)

		svc := NewExpenseService(repo, noCache, nil)
		expense, err := svc.Create(context.Background(), userID, RecordInput{Title: "Dinner", Amount: "42.50"})
		assert.NoError(t, err)
		assert.True(t, expense.Amount.Equal(decimal.RequireFromString("42.5")))
		repo.AssertExpectations(t)
	})

	t.Run("invalid amount", func(t *testing.T) {
		repo := new(MockExpenseRepository)
		svc := NewExpenseService(repo, noCache, nil)

		_, err := svc.Create(context.Background(), userID, RecordInput{Title: "Dinner", Amount: "4 2"})
		_, ok := apperrors.AsInvalidInput(err)
		assert.True(t, ok)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestExpenseService_List_TrimsQuery(t *testing.T) {
	userID := uuid.New()

	repo := new(MockExpenseRepository)
	repo.On("FindAllByUser", mock.Anything, userID, "dinner").Return([]model.Expense{}, nil)

	svc := NewExpenseService(repo, noCache, nil)
	_, err := svc.List(context.Background(), userID, "  dinner ")
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
