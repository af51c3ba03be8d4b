package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReadingTier string

const (
	FreeTier ReadingTier = "FREE"
	DeepTier ReadingTier = "DEEP"
)

// Reading is one generated tarot reading, kept as history.
type Reading struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Identity  string      `gorm:"type:varchar(64);not null;index" json:"identity"`
	Question  string      `gorm:"type:text;not null" json:"question"`
	Topic     string      `gorm:"type:varchar(50)" json:"topic"`
	Tone      string      `gorm:"type:varchar(50)" json:"tone"`
	Tier      ReadingTier `gorm:"type:varchar(10);not null" json:"tier"`
	Cards     string      `gorm:"type:text" json:"cards"`
	Result    string      `gorm:"type:text" json:"result"`
	CreatedAt time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Reading) TableName() string {
	return "readings"
}

func (r *Reading) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}
