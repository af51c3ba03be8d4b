package models

import (
	"time"

	"gorm.io/gorm"
)

// ProcessedPayment records an external payment reference that has
// already been converted into credits. A reference is inserted at most
// once and the row is immutable afterwards; this is what keeps a
// re-submitted checkout session from crediting twice.
type ProcessedPayment struct {
	PaymentReference string    `gorm:"type:varchar(255);primaryKey" json:"payment_reference"`
	Identity         string    `gorm:"type:varchar(64);not null;index" json:"identity"`
	ProcessedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"processed_at"`
}

func (ProcessedPayment) TableName() string {
	return "processed_payments"
}

func (p *ProcessedPayment) BeforeCreate(tx *gorm.DB) error {
	if p.ProcessedAt.IsZero() {
		p.ProcessedAt = time.Now()
	}
	return nil
}
