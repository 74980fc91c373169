package db

import (
	"smartmoney/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Wallet{},
		&models.Event{},
		&models.Market{},
		&models.Position{},
		&models.TradeBatch{},
		&models.FetchCursor{},
		&models.WalletPnl{},
		&models.SyncState{},
	)
}
