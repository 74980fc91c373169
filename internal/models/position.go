package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is three-valued on purpose: a position that vanished from
// the snapshot without resolution data is CLOSED_NEED_DATA, not CLOSED, and
// queues a follow-up fetch. Any state can return to OPEN when the key
// reappears in a snapshot.
type PositionStatus string

const (
	PositionOpen           PositionStatus = "OPEN"
	PositionClosed         PositionStatus = "CLOSED"
	PositionClosedNeedData PositionStatus = "CLOSED_NEED_DATA"
)

// TradeStatus is the per-position work queue for the trade pipeline.
type TradeStatus string

const (
	TradeStatusNeedPull      TradeStatus = "NEED_TO_PULL_TRADES"
	TradeStatusNeedCalculate TradeStatus = "NEED_TO_CALCULATE_PNL"
	TradeStatusSynced        TradeStatus = "TRADES_SYNCED"
)

type Position struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	WalletID uint64 `gorm:"not null;uniqueIndex:uq_positions_wallet_market_outcome;index:idx_positions_wallet_status"`
	MarketID uint64 `gorm:"not null;uniqueIndex:uq_positions_wallet_market_outcome;index"`
	Outcome  string `gorm:"type:varchar(100);not null;uniqueIndex:uq_positions_wallet_market_outcome"`

	ConditionID     string `gorm:"type:varchar(100);not null;index"`
	OppositeOutcome string `gorm:"type:varchar(100);not null"`
	Title           string `gorm:"type:varchar(500);not null"`
	NegativeRisk    bool   `gorm:"not null;default:false"`

	Status      PositionStatus `gorm:"column:position_status;type:varchar(20);not null;index:idx_positions_wallet_status"`
	TradeStatus TradeStatus    `gorm:"type:varchar(30);not null;index"`

	TotalShares     decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	CurrentShares   decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	AvgEntryPrice   decimal.Decimal  `gorm:"type:numeric(20,10);not null;default:0"`
	AmountSpent     decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	AmountRemaining decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	APIRealizedPnl  *decimal.Decimal `gorm:"column:api_realized_pnl;type:numeric(30,10)"`

	// Mirrored market-level aggregates. Never computed per position; copied
	// verbatim from the owning market so every position in a market carries
	// byte-identical PNL fields.
	CalculatedInvested     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	CalculatedOut          decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	CalculatedCurrentValue decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Pnl                    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	EndDate  *time.Time `gorm:"type:timestamptz"`
	ClosedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "positions"
}
