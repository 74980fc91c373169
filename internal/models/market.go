package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Market belongs to one Event and carries the three market-level calculated
// aggregates. These are the single PNL source for every position under the
// market: positions mirror them, they never compute their own.
type Market struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	EventID     uint64 `gorm:"not null;index"`
	ConditionID string `gorm:"type:varchar(100);not null;uniqueIndex"`

	Slug     string     `gorm:"type:text;index"`
	Question string     `gorm:"type:text;not null"`
	Outcomes string     `gorm:"type:text;not null;default:'Yes,No'"`
	EndDate  *time.Time `gorm:"type:timestamptz;index"`
	Closed   bool       `gorm:"not null;default:false;index"`

	CalculatedInvested     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	CalculatedOut          decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	CalculatedCurrentValue decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	LastSeenAt time.Time      `gorm:"type:timestamptz;not null"`
	RawJSON    datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Market) TableName() string {
	return "markets"
}

// OutcomeNames splits the stored outcome list. Binary markets default to Yes/No.
func (m Market) OutcomeNames() []string {
	if m.Outcomes == "" {
		return []string{"Yes", "No"}
	}
	var out []string
	start := 0
	for i := 0; i <= len(m.Outcomes); i++ {
		if i == len(m.Outcomes) || m.Outcomes[i] == ',' {
			if i > start {
				out = append(out, m.Outcomes[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return []string{"Yes", "No"}
	}
	return out
}
