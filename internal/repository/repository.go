package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"smartmoney/internal/models"
)

// Repository is the persistence collaborator for the sync pipeline. The
// Tx-suffixed methods run inside a caller-owned transaction so a wallet's
// whole change-set commits or rolls back as one unit.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Wallets
	UpsertWallets(ctx context.Context, items []models.Wallet) error
	GetWalletByAddress(ctx context.Context, address string) (*models.Wallet, error)
	FindWalletsByIDs(ctx context.Context, ids []uint64) ([]models.Wallet, error)
	ListActiveWallets(ctx context.Context) ([]models.Wallet, error)
	ListWallets(ctx context.Context, params ListWalletsParams) ([]models.Wallet, error)
	CountWallets(ctx context.Context, params ListWalletsParams) (int64, error)
	MarkWalletSyncedTx(ctx context.Context, tx *gorm.DB, walletID uint64, syncedAt time.Time) error

	// Events & markets
	UpsertEventsTx(ctx context.Context, tx *gorm.DB, items []models.Event) error
	FindEventsByPlatformIDs(ctx context.Context, platformIDs []string) ([]models.Event, error)
	UpsertMarketsTx(ctx context.Context, tx *gorm.DB, items []models.Market) error
	// MarkMarketsClosedTx flips resolution on. The flag is monotonic and
	// this is its only writer; catalog upserts never touch it.
	MarkMarketsClosedTx(ctx context.Context, tx *gorm.DB, marketIDs []uint64) error
	FindMarketsByConditionIDs(ctx context.Context, conditionIDs []string) ([]models.Market, error)
	GetMarketByConditionID(ctx context.Context, conditionID string) (*models.Market, error)

	// LockMarketTx serializes cross-wallet writers of one market's
	// calculated fields for the remainder of the transaction.
	LockMarketTx(ctx context.Context, tx *gorm.DB, marketID uint64) error
	// UpdateMarketPnlTx writes the market aggregates and fans them out to
	// every position under the market in the same statement batch.
	UpdateMarketPnlTx(ctx context.Context, tx *gorm.DB, marketID uint64, invested, out, currentValue, pnl decimal.Decimal) error

	// Positions
	UpsertPositionsTx(ctx context.Context, tx *gorm.DB, items []models.Position) error
	UpdatePositionStatusTx(ctx context.Context, tx *gorm.DB, ids []uint64, status models.PositionStatus, closedAt *time.Time) error
	SetTradeStatusTx(ctx context.Context, tx *gorm.DB, ids []uint64, status models.TradeStatus) error
	ListWalletPositions(ctx context.Context, walletID uint64) ([]models.Position, error)
	ListPositionsByTradeStatus(ctx context.Context, status models.TradeStatus, limit int) ([]models.Position, error)
	ListPositionsByStatus(ctx context.Context, status models.PositionStatus, limit int) ([]models.Position, error)
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	CountPositions(ctx context.Context, params ListPositionsParams) (int64, error)

	// Trade batches
	UpsertTradeBatchesTx(ctx context.Context, tx *gorm.DB, items []models.TradeBatch) error
	ListTradeBatchesByMarket(ctx context.Context, marketID uint64) ([]models.TradeBatch, error)

	// Fetch cursors
	GetFetchCursor(ctx context.Context, walletID, marketID uint64) (*models.FetchCursor, error)
	SaveFetchCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.FetchCursor) error

	// Wallet pnl rollups
	UpsertWalletPnlsTx(ctx context.Context, tx *gorm.DB, items []models.WalletPnl) error
	GetWalletPnl(ctx context.Context, walletID uint64, periodDays int) (*models.WalletPnl, error)
	ListWalletMarketAggregates(ctx context.Context, walletID uint64, since time.Time) ([]WalletMarketAggregate, error)

	// Sync state
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)
}

// WalletMarketAggregate is one wallet's cash flow into one market within a
// rollup window, derived from its trade batches, plus the current value of
// its open positions there.
type WalletMarketAggregate struct {
	MarketID     uint64
	Closed       bool
	Invested     decimal.Decimal
	Out          decimal.Decimal
	CurrentValue decimal.Decimal
}

type ListWalletsParams struct {
	Limit    int
	Offset   int
	Active   *bool
	Category *string
	Type     *string
	Address  *string
	OrderBy  string
	Asc      *bool
}

type ListPositionsParams struct {
	Limit       int
	Offset      int
	WalletID    *uint64
	MarketID    *uint64
	Status      *string
	TradeStatus *string
	Outcome     *string
	OrderBy     string
	Asc         *bool
}
