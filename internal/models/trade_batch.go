package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeBatch is the aggregation unit for raw trades: one row per
// (wallet, market, outcome, calendar date, trade type). Derived from raw
// activity and recomputable from it; persisted for query performance. The
// upsert key makes re-aggregation idempotent: a repeated run overwrites the
// same totals instead of appending.
type TradeBatch struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	WalletID uint64 `gorm:"not null;uniqueIndex:uq_trade_batches_key;index"`
	MarketID uint64 `gorm:"not null;uniqueIndex:uq_trade_batches_key;index"`

	ConditionID string    `gorm:"type:varchar(100);not null;index"`
	Outcome     string    `gorm:"type:varchar(100);not null;uniqueIndex:uq_trade_batches_key"`
	TradeType   string    `gorm:"type:varchar(10);not null;uniqueIndex:uq_trade_batches_key"`
	TradeDate   time.Time `gorm:"type:date;not null;uniqueIndex:uq_trade_batches_key;index"`

	TotalShares      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TransactionCount int             `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradeBatch) TableName() string {
	return "trade_batches"
}
