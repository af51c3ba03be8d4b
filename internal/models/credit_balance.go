package models

import (
	"time"

	"gorm.io/gorm"
)

// CreditBalance holds the pre-paid deep-reading credits owned by one
// identity. Balance never goes negative; all mutations are relative.
type CreditBalance struct {
	Identity  string    `gorm:"type:varchar(64);primaryKey" json:"identity"`
	Balance   int       `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CreditBalance) TableName() string {
	return "credit_balances"
}

func (c *CreditBalance) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	return nil
}
