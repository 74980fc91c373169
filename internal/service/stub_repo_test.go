package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"smartmoney/internal/models"
	"smartmoney/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// It implements the full interface but each test exercises only a slice of it;
// write methods capture their arguments for assertions.
type stubRepo struct {
	wallets     []models.Wallet
	positions   []models.Position
	markets     map[string]models.Market
	events      map[string]models.Event
	tradeRows   []models.TradeBatch
	cursors     map[[2]uint64]*models.FetchCursor
	queue       map[models.TradeStatus][]models.Position
	statusQueue map[models.PositionStatus][]models.Position

	upsertedPositions []models.Position
	upsertedWallets   []models.Wallet
	upsertedBatches   []models.TradeBatch
	upsertedRollups   []models.WalletPnl
	savedCursors      []*models.FetchCursor
	lockedMarkets     []uint64
	closedMarkets     []uint64
	statusUpdates     map[models.PositionStatus][]uint64
	tradeStatusSets   map[models.TradeStatus][]uint64
	marketPnlWrites   map[uint64][4]decimal.Decimal
	syncedWallets     []uint64
	syncStates        map[string]*models.SyncState
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		markets:         map[string]models.Market{},
		events:          map[string]models.Event{},
		cursors:         map[[2]uint64]*models.FetchCursor{},
		queue:           map[models.TradeStatus][]models.Position{},
		statusQueue:     map[models.PositionStatus][]models.Position{},
		statusUpdates:   map[models.PositionStatus][]uint64{},
		tradeStatusSets: map[models.TradeStatus][]uint64{},
		marketPnlWrites: map[uint64][4]decimal.Decimal{},
		syncStates:      map[string]*models.SyncState{},
	}
}

var _ repository.Repository = (*stubRepo)(nil)

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) UpsertWallets(ctx context.Context, items []models.Wallet) error {
	s.upsertedWallets = append(s.upsertedWallets, items...)
	return nil
}

func (s *stubRepo) GetWalletByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	for _, w := range s.wallets {
		if w.Address == address {
			out := w
			return &out, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) FindWalletsByIDs(ctx context.Context, ids []uint64) ([]models.Wallet, error) {
	var out []models.Wallet
	for _, w := range s.wallets {
		for _, id := range ids {
			if w.ID == id {
				out = append(out, w)
			}
		}
	}
	return out, nil
}

func (s *stubRepo) ListActiveWallets(ctx context.Context) ([]models.Wallet, error) {
	return s.wallets, nil
}

func (s *stubRepo) ListWallets(ctx context.Context, params repository.ListWalletsParams) ([]models.Wallet, error) {
	return s.wallets, nil
}

func (s *stubRepo) CountWallets(ctx context.Context, params repository.ListWalletsParams) (int64, error) {
	return int64(len(s.wallets)), nil
}

func (s *stubRepo) MarkWalletSyncedTx(ctx context.Context, tx *gorm.DB, walletID uint64, syncedAt time.Time) error {
	s.syncedWallets = append(s.syncedWallets, walletID)
	return nil
}

func (s *stubRepo) UpsertEventsTx(ctx context.Context, tx *gorm.DB, items []models.Event) error {
	for _, ev := range items {
		if _, ok := s.events[ev.PlatformEventID]; !ok {
			ev.ID = uint64(len(s.events) + 1)
			s.events[ev.PlatformEventID] = ev
		}
	}
	return nil
}

func (s *stubRepo) FindEventsByPlatformIDs(ctx context.Context, platformIDs []string) ([]models.Event, error) {
	var out []models.Event
	for _, id := range platformIDs {
		if ev, ok := s.events[id]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertMarketsTx(ctx context.Context, tx *gorm.DB, items []models.Market) error {
	for _, m := range items {
		if existing, ok := s.markets[m.ConditionID]; ok {
			m.ID = existing.ID
			m.Closed = existing.Closed
		} else {
			m.ID = uint64(len(s.markets) + 1)
		}
		s.markets[m.ConditionID] = m
	}
	return nil
}

func (s *stubRepo) MarkMarketsClosedTx(ctx context.Context, tx *gorm.DB, marketIDs []uint64) error {
	if len(marketIDs) == 0 {
		return nil
	}
	s.closedMarkets = append(s.closedMarkets, marketIDs...)
	for cid, m := range s.markets {
		for _, id := range marketIDs {
			if m.ID == id {
				m.Closed = true
				s.markets[cid] = m
			}
		}
	}
	return nil
}

func (s *stubRepo) FindMarketsByConditionIDs(ctx context.Context, conditionIDs []string) ([]models.Market, error) {
	var out []models.Market
	for _, id := range conditionIDs {
		if m, ok := s.markets[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubRepo) GetMarketByConditionID(ctx context.Context, conditionID string) (*models.Market, error) {
	if m, ok := s.markets[conditionID]; ok {
		out := m
		return &out, nil
	}
	return nil, nil
}

func (s *stubRepo) LockMarketTx(ctx context.Context, tx *gorm.DB, marketID uint64) error {
	s.lockedMarkets = append(s.lockedMarkets, marketID)
	return nil
}

func (s *stubRepo) UpdateMarketPnlTx(ctx context.Context, tx *gorm.DB, marketID uint64, invested, out, currentValue, pnl decimal.Decimal) error {
	s.marketPnlWrites[marketID] = [4]decimal.Decimal{invested, out, currentValue, pnl}
	return nil
}

func (s *stubRepo) UpsertPositionsTx(ctx context.Context, tx *gorm.DB, items []models.Position) error {
	s.upsertedPositions = append(s.upsertedPositions, items...)
	return nil
}

func (s *stubRepo) UpdatePositionStatusTx(ctx context.Context, tx *gorm.DB, ids []uint64, status models.PositionStatus, closedAt *time.Time) error {
	if len(ids) > 0 {
		s.statusUpdates[status] = append(s.statusUpdates[status], ids...)
	}
	return nil
}

func (s *stubRepo) SetTradeStatusTx(ctx context.Context, tx *gorm.DB, ids []uint64, status models.TradeStatus) error {
	if len(ids) > 0 {
		s.tradeStatusSets[status] = append(s.tradeStatusSets[status], ids...)
	}
	return nil
}

func (s *stubRepo) ListWalletPositions(ctx context.Context, walletID uint64) ([]models.Position, error) {
	var out []models.Position
	for _, p := range s.positions {
		if p.WalletID == walletID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) ListPositionsByTradeStatus(ctx context.Context, status models.TradeStatus, limit int) ([]models.Position, error) {
	return s.queue[status], nil
}

func (s *stubRepo) ListPositionsByStatus(ctx context.Context, status models.PositionStatus, limit int) ([]models.Position, error) {
	return s.statusQueue[status], nil
}

func (s *stubRepo) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	var out []models.Position
	for _, p := range s.positions {
		if params.MarketID != nil && p.MarketID != *params.MarketID {
			continue
		}
		if params.Status != nil && string(p.Status) != *params.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *stubRepo) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	items, _ := s.ListPositions(ctx, params)
	return int64(len(items)), nil
}

func (s *stubRepo) UpsertTradeBatchesTx(ctx context.Context, tx *gorm.DB, items []models.TradeBatch) error {
	s.upsertedBatches = append(s.upsertedBatches, items...)
	return nil
}

func (s *stubRepo) ListTradeBatchesByMarket(ctx context.Context, marketID uint64) ([]models.TradeBatch, error) {
	var out []models.TradeBatch
	for _, b := range s.tradeRows {
		if b.MarketID == marketID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubRepo) GetFetchCursor(ctx context.Context, walletID, marketID uint64) (*models.FetchCursor, error) {
	return s.cursors[[2]uint64{walletID, marketID}], nil
}

func (s *stubRepo) SaveFetchCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.FetchCursor) error {
	s.savedCursors = append(s.savedCursors, cursor)
	s.cursors[[2]uint64{cursor.WalletID, cursor.MarketID}] = cursor
	return nil
}

func (s *stubRepo) UpsertWalletPnlsTx(ctx context.Context, tx *gorm.DB, items []models.WalletPnl) error {
	s.upsertedRollups = append(s.upsertedRollups, items...)
	return nil
}

func (s *stubRepo) GetWalletPnl(ctx context.Context, walletID uint64, periodDays int) (*models.WalletPnl, error) {
	for _, r := range s.upsertedRollups {
		if r.WalletID == walletID && r.PeriodDays == periodDays {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListWalletMarketAggregates(ctx context.Context, walletID uint64, since time.Time) ([]repository.WalletMarketAggregate, error) {
	return nil, nil
}

func (s *stubRepo) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	return s.syncStates[scope], nil
}

func (s *stubRepo) SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error {
	s.syncStates[state.Scope] = state
	return nil
}

func (s *stubRepo) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	var out []models.SyncState
	for _, st := range s.syncStates {
		out = append(out, *st)
	}
	return out, nil
}
