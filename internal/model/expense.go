package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense represents a single expense entry owned by one user.
//
// The primary key is the composite (id, user_id); every lookup and mutation
// is keyed by both columns, so a user can only ever address their own rows.
type Expense struct {
	ID           uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	UserID       uuid.UUID       `json:"user_id" gorm:"type:char(36);primaryKey"`
	Title        string          `json:"title" gorm:"size:255;not null"`
	Description  string          `json:"description" gorm:"type:text"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(13,2);not null"`
	CurrencyCode string          `json:"currency_code" gorm:"size:3;not null;default:'USD'"`
	Attachment   *string         `json:"attachment" gorm:"size:255"`
	CreatedAt    time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
