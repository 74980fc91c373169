package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event groups markets. Identity fields are immutable after first sight;
// descriptive fields refresh on every sync.
type Event struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement"`
	PlatformEventID string  `gorm:"type:varchar(100);not null;uniqueIndex"`
	Slug            string  `gorm:"type:text;index"`
	Title           string  `gorm:"type:text;not null"`
	Description     *string `gorm:"type:text"`

	NegRisk    bool       `gorm:"not null;default:false"`
	StartTime  *time.Time `gorm:"type:timestamptz"`
	EndTime    *time.Time `gorm:"type:timestamptz"`
	LastSeenAt time.Time  `gorm:"type:timestamptz;not null"`
	RawJSON    datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Event) TableName() string {
	return "events"
}
