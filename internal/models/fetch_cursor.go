package models

import (
	"time"
)

// FetchCursor tracks the latest fetched trade timestamp per wallet-market
// pair. A nil watermark means the pair has never been fetched and needs a
// full sync; otherwise trade pulls are incremental from the watermark.
type FetchCursor struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	WalletID uint64 `gorm:"not null;uniqueIndex:uq_fetch_cursors_wallet_market"`
	MarketID uint64 `gorm:"not null;uniqueIndex:uq_fetch_cursors_wallet_market;index"`

	LatestFetchedAt *int64 `gorm:"comment:epoch seconds of newest fetched trade"`
	Active          bool   `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (FetchCursor) TableName() string {
	return "fetch_cursors"
}

func (c FetchCursor) NeedsFullSync() bool {
	return c.LatestFetchedAt == nil
}
