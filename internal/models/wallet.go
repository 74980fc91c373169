package models

import (
	"time"
)

// WalletType tracks the wallet lifecycle: NEW wallets still need their first
// full position fetch, OLD wallets are on the incremental update path.
type WalletType string

const (
	WalletTypeNew WalletType = "NEW"
	WalletTypeOld WalletType = "OLD"
)

type Wallet struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	Address string `gorm:"type:varchar(100);not null;uniqueIndex"`

	Username      string  `gorm:"type:varchar(255);index"`
	XUsername     *string `gorm:"type:varchar(255)"`
	VerifiedBadge bool    `gorm:"not null;default:false"`
	ProfileImage  *string `gorm:"type:varchar(500)"`

	Platform string     `gorm:"type:varchar(50);not null;default:'polymarket';index"`
	Category *string    `gorm:"type:varchar(100);index"`
	Type     WalletType `gorm:"column:wallet_type;type:varchar(10);not null;default:'NEW';index"`
	Active   bool       `gorm:"not null;default:true;index"`

	FirstSeenAt  time.Time  `gorm:"type:timestamptz;not null"`
	LastSyncedAt *time.Time `gorm:"type:timestamptz;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Wallet) TableName() string {
	return "wallets"
}
