package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletPnl is the per-wallet rollup over a trailing window (30/60/90 days),
// split by open and closed markets. Rebuilt from persisted market-level
// aggregates, never from raw trades.
type WalletPnl struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	WalletID   uint64 `gorm:"not null;uniqueIndex:uq_wallet_pnls_wallet_period"`
	PeriodDays int    `gorm:"not null;uniqueIndex:uq_wallet_pnls_wallet_period"`

	WindowStart time.Time `gorm:"type:timestamptz;not null"`
	WindowEnd   time.Time `gorm:"type:timestamptz;not null"`

	OpenInvested     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	OpenOut          decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	OpenCurrentValue decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	ClosedInvested   decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	ClosedOut        decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	TotalInvested     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TotalOut          decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TotalCurrentValue decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (WalletPnl) TableName() string {
	return "wallet_pnls"
}

// Pnl is out + current value - invested over the whole window.
func (w WalletPnl) Pnl() decimal.Decimal {
	return w.TotalOut.Add(w.TotalCurrentValue).Sub(w.TotalInvested)
}
