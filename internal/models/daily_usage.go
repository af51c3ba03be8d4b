package models

import (
	"time"
)

// DailyUsage tracks how many free readings one identity consumed on one
// calendar day. At most one row per (identity, day); used_count only
// grows within a day.
type DailyUsage struct {
	Identity  string    `gorm:"type:varchar(64);primaryKey" json:"identity"`
	Day       string    `gorm:"type:varchar(10);primaryKey" json:"day"`
	UsedCount int       `gorm:"not null;default:0" json:"used_count"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (DailyUsage) TableName() string {
	return "daily_usage"
}
