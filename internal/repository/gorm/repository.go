package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartmoney/internal/models"
	"smartmoney/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- wallets ----------------------------------------------------------------

func (s *Store) UpsertWallets(ctx context.Context, items []models.Wallet) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	// DoNothing on the address key: concurrent discovery runs race on the
	// same candidates and the first insert wins.
	return createInBatches(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}), items, 200)
}

func (s *Store) GetWalletByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}
	var item models.Wallet
	err := s.db.WithContext(ctx).Model(&models.Wallet{}).Where("address = ?", address).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) FindWalletsByIDs(ctx context.Context, ids []uint64) ([]models.Wallet, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.Wallet
	if err := s.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListActiveWallets(ctx context.Context) ([]models.Wallet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Wallet
	if err := s.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("active = ?", true).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListWallets(ctx context.Context, params repository.ListWalletsParams) ([]models.Wallet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyWalletFilters(s.db.WithContext(ctx).Model(&models.Wallet{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Wallet
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountWallets(ctx context.Context, params repository.ListWalletsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyWalletFilters(s.db.WithContext(ctx).Model(&models.Wallet{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyWalletFilters(query *gorm.DB, params repository.ListWalletsParams) *gorm.DB {
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	if params.Category != nil && strings.TrimSpace(*params.Category) != "" {
		query = query.Where("category = ?", strings.TrimSpace(*params.Category))
	}
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("wallet_type = ?", strings.TrimSpace(*params.Type))
	}
	if params.Address != nil && strings.TrimSpace(*params.Address) != "" {
		query = query.Where("address = ?", strings.TrimSpace(*params.Address))
	}
	return query
}

func (s *Store) MarkWalletSyncedTx(ctx context.Context, tx *gorm.DB, walletID uint64, syncedAt time.Time) error {
	if tx == nil || walletID == 0 {
		return nil
	}
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	return tx.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"last_synced_at": syncedAt,
			"wallet_type":    models.WalletTypeOld,
			"updated_at":     syncedAt,
		}).Error
}

// --- events & markets -------------------------------------------------------

func (s *Store) UpsertEventsTx(ctx context.Context, tx *gorm.DB, items []models.Event) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform_event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"slug",
			"title",
			"description",
			"neg_risk",
			"start_time",
			"end_time",
			"last_seen_at",
			"raw_json",
			"updated_at",
		}),
	}), items, 200)
}

func (s *Store) FindEventsByPlatformIDs(ctx context.Context, platformIDs []string) ([]models.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	platformIDs = cleanStrings(platformIDs)
	if len(platformIDs) == 0 {
		return nil, nil
	}
	var items []models.Event
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("platform_event_id IN ?", platformIDs).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertMarketsTx(ctx context.Context, tx *gorm.DB, items []models.Market) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	// Calculated aggregates and the closed flag are deliberately absent
	// from the update set: catalog refreshes must not clobber the pnl
	// pipeline's figures, and resolution only moves forward through
	// MarkMarketsClosedTx.
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "condition_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"event_id",
			"slug",
			"question",
			"outcomes",
			"end_date",
			"last_seen_at",
			"raw_json",
			"updated_at",
		}),
	}), items, 200)
}

func (s *Store) MarkMarketsClosedTx(ctx context.Context, tx *gorm.DB, marketIDs []uint64) error {
	if tx == nil || len(marketIDs) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Market{}).
		Where("id IN ? AND closed = false", marketIDs).
		Updates(map[string]any{
			"closed":     true,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (s *Store) FindMarketsByConditionIDs(ctx context.Context, conditionIDs []string) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	conditionIDs = cleanStrings(conditionIDs)
	if len(conditionIDs) == 0 {
		return nil, nil
	}
	var items []models.Market
	if err := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("condition_id IN ?", conditionIDs).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetMarketByConditionID(ctx context.Context, conditionID string) (*models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	conditionID = strings.TrimSpace(conditionID)
	if conditionID == "" {
		return nil, nil
	}
	var item models.Market
	err := s.db.WithContext(ctx).Model(&models.Market{}).Where("condition_id = ?", conditionID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) LockMarketTx(ctx context.Context, tx *gorm.DB, marketID uint64) error {
	if tx == nil || marketID == 0 {
		return nil
	}
	// Transaction-scoped advisory lock; released automatically at
	// commit/rollback. The class constant keeps market ids from colliding
	// with any other advisory-lock user of the same database.
	return tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?, ?)", advisoryLockClassMarket, int64(marketID)).Error
}

const advisoryLockClassMarket = int32(7401)

func (s *Store) UpdateMarketPnlTx(ctx context.Context, tx *gorm.DB, marketID uint64, invested, out, currentValue, pnl decimal.Decimal) error {
	if tx == nil || marketID == 0 {
		return nil
	}
	now := time.Now().UTC()
	if err := tx.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ?", marketID).
		Updates(map[string]any{
			"calculated_invested":      invested,
			"calculated_out":           out,
			"calculated_current_value": currentValue,
			"updated_at":               now,
		}).Error; err != nil {
		return err
	}
	// Fan-out: every position under the market carries the identical
	// market-level figures, whatever its wallet or outcome.
	return tx.WithContext(ctx).
		Model(&models.Position{}).
		Where("market_id = ?", marketID).
		Updates(map[string]any{
			"calculated_invested":      invested,
			"calculated_out":           out,
			"calculated_current_value": currentValue,
			"pnl":                      pnl,
			"updated_at":               now,
		}).Error
}

// --- positions --------------------------------------------------------------

func (s *Store) UpsertPositionsTx(ctx context.Context, tx *gorm.DB, items []models.Position) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	// The calculated_* mirrors and pnl are owned by UpdateMarketPnlTx and
	// stay out of this update set.
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_id"}, {Name: "market_id"}, {Name: "outcome"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"condition_id",
			"opposite_outcome",
			"title",
			"negative_risk",
			"position_status",
			"trade_status",
			"total_shares",
			"current_shares",
			"avg_entry_price",
			"amount_spent",
			"amount_remaining",
			"api_realized_pnl",
			"end_date",
			"closed_at",
			"updated_at",
		}),
	}), items, 200)
}

func (s *Store) UpdatePositionStatusTx(ctx context.Context, tx *gorm.DB, ids []uint64, status models.PositionStatus, closedAt *time.Time) error {
	if tx == nil || len(ids) == 0 {
		return nil
	}
	updates := map[string]any{
		"position_status": status,
		"updated_at":      time.Now().UTC(),
	}
	if status == models.PositionOpen {
		updates["closed_at"] = nil
	} else if closedAt != nil {
		updates["closed_at"] = *closedAt
	}
	return tx.WithContext(ctx).
		Model(&models.Position{}).
		Where("id IN ?", ids).
		Updates(updates).Error
}

func (s *Store) SetTradeStatusTx(ctx context.Context, tx *gorm.DB, ids []uint64, status models.TradeStatus) error {
	if tx == nil || len(ids) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Position{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"trade_status": status,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (s *Store) ListWalletPositions(ctx context.Context, walletID uint64) ([]models.Position, error) {
	if s == nil || s.db == nil || walletID == 0 {
		return nil, nil
	}
	var items []models.Position
	if err := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("wallet_id = ?", walletID).
		Order("market_id asc, outcome asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPositionsByTradeStatus(ctx context.Context, status models.TradeStatus, limit int) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 200)
	var items []models.Position
	if err := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("trade_status = ?", status).
		Order("wallet_id asc, market_id asc, outcome asc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPositionsByStatus(ctx context.Context, status models.PositionStatus, limit int) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 200)
	var items []models.Position
	if err := s.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("position_status = ?", status).
		Order("wallet_id asc, market_id asc, outcome asc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyPositionFilters(s.db.WithContext(ctx).Model(&models.Position{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Position
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	query := applyPositionFilters(s.db.WithContext(ctx).Model(&models.Position{}), params)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyPositionFilters(query *gorm.DB, params repository.ListPositionsParams) *gorm.DB {
	if params.WalletID != nil && *params.WalletID > 0 {
		query = query.Where("wallet_id = ?", *params.WalletID)
	}
	if params.MarketID != nil && *params.MarketID > 0 {
		query = query.Where("market_id = ?", *params.MarketID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("position_status = ?", strings.TrimSpace(*params.Status))
	}
	if params.TradeStatus != nil && strings.TrimSpace(*params.TradeStatus) != "" {
		query = query.Where("trade_status = ?", strings.TrimSpace(*params.TradeStatus))
	}
	if params.Outcome != nil && strings.TrimSpace(*params.Outcome) != "" {
		query = query.Where("outcome = ?", strings.TrimSpace(*params.Outcome))
	}
	return query
}

// --- trade batches ----------------------------------------------------------

func (s *Store) UpsertTradeBatchesTx(ctx context.Context, tx *gorm.DB, items []models.TradeBatch) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	// Overwrite, never add: a re-run over a superset of the same trades
	// lands on the same keys with the same totals.
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "wallet_id"},
			{Name: "market_id"},
			{Name: "outcome"},
			{Name: "trade_type"},
			{Name: "trade_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"condition_id",
			"total_shares",
			"total_amount",
			"transaction_count",
			"updated_at",
		}),
	}), items, 300)
}

func (s *Store) ListTradeBatchesByMarket(ctx context.Context, marketID uint64) ([]models.TradeBatch, error) {
	if s == nil || s.db == nil || marketID == 0 {
		return nil, nil
	}
	var items []models.TradeBatch
	if err := s.db.WithContext(ctx).
		Model(&models.TradeBatch{}).
		Where("market_id = ?", marketID).
		Order("trade_date asc, outcome asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- fetch cursors ----------------------------------------------------------

func (s *Store) GetFetchCursor(ctx context.Context, walletID, marketID uint64) (*models.FetchCursor, error) {
	if s == nil || s.db == nil || walletID == 0 || marketID == 0 {
		return nil, nil
	}
	var item models.FetchCursor
	err := s.db.WithContext(ctx).
		Model(&models.FetchCursor{}).
		Where("wallet_id = ? AND market_id = ?", walletID, marketID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveFetchCursorTx(ctx context.Context, tx *gorm.DB, cursor *models.FetchCursor) error {
	if tx == nil || cursor == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_id"}, {Name: "market_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"latest_fetched_at",
			"active",
			"updated_at",
		}),
	}).Create(cursor).Error
}

// --- wallet pnl rollups -----------------------------------------------------

func (s *Store) UpsertWalletPnlsTx(ctx context.Context, tx *gorm.DB, items []models.WalletPnl) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return createInBatches(tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_id"}, {Name: "period_days"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"window_start",
			"window_end",
			"open_invested",
			"open_out",
			"open_current_value",
			"closed_invested",
			"closed_out",
			"total_invested",
			"total_out",
			"total_current_value",
			"updated_at",
		}),
	}), items, 200)
}

func (s *Store) GetWalletPnl(ctx context.Context, walletID uint64, periodDays int) (*models.WalletPnl, error) {
	if s == nil || s.db == nil || walletID == 0 {
		return nil, nil
	}
	var item models.WalletPnl
	err := s.db.WithContext(ctx).
		Model(&models.WalletPnl{}).
		Where("wallet_id = ? AND period_days = ?", walletID, periodDays).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListWalletMarketAggregates(ctx context.Context, walletID uint64, since time.Time) ([]repository.WalletMarketAggregate, error) {
	if s == nil || s.db == nil || walletID == 0 {
		return nil, nil
	}
	// One row per market the wallet traded in the window: signed batch
	// amounts split into invested/out, current value taken from the
	// wallet's open positions in that market.
	var rows []repository.WalletMarketAggregate
	err := s.db.WithContext(ctx).
		Table("trade_batches AS b").
		Select(`
			b.market_id AS market_id,
			m.closed AS closed,
			COALESCE(SUM(CASE WHEN b.total_amount < 0 THEN -b.total_amount ELSE 0 END), 0) AS invested,
			COALESCE(SUM(CASE WHEN b.total_amount >= 0 THEN b.total_amount ELSE 0 END), 0) AS "out",
			COALESCE((
				SELECT SUM(p.amount_remaining)
				FROM positions p
				WHERE p.wallet_id = b.wallet_id
				  AND p.market_id = b.market_id
				  AND p.position_status = 'OPEN'
			), 0) AS current_value
		`).
		Joins("JOIN markets AS m ON m.id = b.market_id").
		Where("b.wallet_id = ?", walletID).
		Where("b.trade_date >= ?", since).
		Group("b.wallet_id, b.market_id, m.closed").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// --- sync state -------------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).First(&state, "scope = ?", scope).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error {
	if tx == nil || state == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cursor",
			"watermark_ts",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(state).Error
}

func (s *Store) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var states []models.SyncState
	if err := s.db.WithContext(ctx).Order("scope asc").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

// --- helpers ----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

var _ repository.Repository = (*Store)(nil)
