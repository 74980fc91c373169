package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"smartmoney/internal/client/polymarket/data"
	"smartmoney/internal/models"
	"smartmoney/internal/pnl"
	"smartmoney/internal/repository"
	"smartmoney/internal/trade"
)

// ActivityFetcher is the slice of the data-api client the trade pipeline
// needs.
type ActivityFetcher interface {
	Activity(ctx context.Context, walletAddress, conditionID string, start, end *int64) ([]data.Activity, error)
}

// TradeSyncService works the trade-status queue in two phases. Pull:
// positions in NEED_TO_PULL_TRADES get their raw activity fetched (full or
// incremental via the fetch cursor), aggregated and upserted as batches,
// then move to NEED_TO_CALCULATE_PNL. Calculate: each touched market's
// aggregates are recomputed from all persisted batches and fanned out to
// its positions, which move to TRADES_SYNCED.
type TradeSyncService struct {
	Repo    repository.Repository
	Fetcher ActivityFetcher
	Logger  *zap.Logger

	Workers   int
	BatchSize int
}

func (s *TradeSyncService) Run(ctx context.Context) {
	if s == nil || s.Repo == nil || s.Fetcher == nil {
		return
	}
	pulled, pullErrs := s.pullTrades(ctx)
	calced, calcErrs := s.calculatePnl(ctx)
	if s.Logger != nil {
		s.Logger.Info("trade sync pass done",
			zap.Int("markets_pulled", pulled),
			zap.Int("pull_errors", pullErrs),
			zap.Int("markets_calculated", calced),
			zap.Int("calc_errors", calcErrs))
	}
}

type walletMarketGroup struct {
	wallet      models.Wallet
	marketID    uint64
	conditionID string
	positionIDs []uint64
}

func (s *TradeSyncService) pullTrades(ctx context.Context) (done, failed int) {
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	positions, err := s.Repo.ListPositionsByTradeStatus(ctx, models.TradeStatusNeedPull, batchSize)
	if err != nil || len(positions) == 0 {
		if err != nil && s.Logger != nil {
			s.Logger.Warn("trade sync: list queue failed", zap.Error(err))
		}
		return 0, 0
	}

	groups := groupByWalletMarket(positions)
	wallets, err := s.Repo.FindWalletsByIDs(ctx, walletIDsOf(groups))
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("trade sync: load wallets failed", zap.Error(err))
		}
		return 0, 0
	}
	walletByID := make(map[uint64]models.Wallet, len(wallets))
	for _, w := range wallets {
		walletByID[w.ID] = w
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 8
	}
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range groups {
		grp := groups[i]
		wallet, ok := walletByID[grp.wallet.ID]
		if !ok {
			continue
		}
		grp.wallet = wallet
		g.Go(func() error {
			err := s.pullMarketTrades(ctx, grp)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if s.Logger != nil {
					s.Logger.Warn("trade pull failed",
						zap.String("wallet", grp.wallet.Address),
						zap.String("market", grp.conditionID),
						zap.Error(err))
				}
				return nil
			}
			done++
			return nil
		})
	}
	_ = g.Wait()
	return done, failed
}

func (s *TradeSyncService) pullMarketTrades(ctx context.Context, grp walletMarketGroup) error {
	cursor, err := s.Repo.GetFetchCursor(ctx, grp.wallet.ID, grp.marketID)
	if err != nil {
		return err
	}
	var start *int64
	if cursor != nil && !cursor.NeedsFullSync() {
		// Batches are keyed by calendar day and overwritten whole, so the
		// incremental window must cover the watermark's entire UTC day. A
		// mid-day start would rebuild the boundary day from only its tail.
		day := time.Unix(*cursor.LatestFetchedAt, 0).UTC().Truncate(24 * time.Hour).Unix()
		start = &day
	}

	activities, err := s.Fetcher.Activity(ctx, grp.wallet.Address, grp.conditionID, start, nil)
	if err != nil {
		return fmt.Errorf("fetch activity: %w", err)
	}

	market, err := s.Repo.GetMarketByConditionID(ctx, grp.conditionID)
	if err != nil {
		return err
	}
	if market == nil {
		return fmt.Errorf("market %s missing from hierarchy", grp.conditionID)
	}

	raws := make([]trade.Raw, 0, len(activities))
	for _, a := range activities {
		typ, err := trade.ParseType(a.Type, a.Side)
		if err != nil {
			// Unknown types poison the whole market's figures; leave it
			// queued and surface the inconsistency.
			return err
		}
		raws = append(raws, trade.Raw{
			ConditionID: a.ConditionID,
			Type:        typ,
			Outcome:     a.Outcome,
			Shares:      a.Size.Decimal,
			AmountUSDC:  a.UsdcSize.Decimal,
			Timestamp:   time.Unix(a.Timestamp, 0).UTC(),
		})
	}
	batches, err := trade.Aggregate(raws, market.OutcomeNames())
	if err != nil {
		return err
	}

	rows := make([]models.TradeBatch, 0, len(batches))
	for _, b := range batches {
		date, err := time.Parse("2006-01-02", b.Key.Date)
		if err != nil {
			return fmt.Errorf("bad batch date %q: %w", b.Key.Date, err)
		}
		rows = append(rows, models.TradeBatch{
			WalletID:         grp.wallet.ID,
			MarketID:         market.ID,
			ConditionID:      b.Key.ConditionID,
			Outcome:          b.Key.Outcome,
			TradeType:        string(b.Key.Type),
			TradeDate:        date,
			TotalShares:      b.TotalShares,
			TotalAmount:      b.TotalAmount,
			TransactionCount: b.TransactionCount,
		})
	}

	next := &models.FetchCursor{
		WalletID: grp.wallet.ID,
		MarketID: market.ID,
		Active:   true,
	}
	if latest := data.LatestTimestamp(activities); latest > 0 {
		next.LatestFetchedAt = &latest
	} else if cursor != nil {
		next.LatestFetchedAt = cursor.LatestFetchedAt
	}

	return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.UpsertTradeBatchesTx(ctx, tx, rows); err != nil {
			return err
		}
		if err := s.Repo.SaveFetchCursorTx(ctx, tx, next); err != nil {
			return err
		}
		return s.Repo.SetTradeStatusTx(ctx, tx, grp.positionIDs, models.TradeStatusNeedCalculate)
	})
}

func (s *TradeSyncService) calculatePnl(ctx context.Context) (done, failed int) {
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	positions, err := s.Repo.ListPositionsByTradeStatus(ctx, models.TradeStatusNeedCalculate, batchSize)
	if err != nil || len(positions) == 0 {
		if err != nil && s.Logger != nil {
			s.Logger.Warn("trade sync: list calc queue failed", zap.Error(err))
		}
		return 0, 0
	}

	byMarket := map[uint64][]uint64{}
	for _, p := range positions {
		byMarket[p.MarketID] = append(byMarket[p.MarketID], p.ID)
	}
	for marketID, ids := range byMarket {
		if err := recalcMarket(ctx, s.Repo, marketID, ids, models.TradeStatusSynced); err != nil {
			failed++
			if s.Logger != nil {
				s.Logger.Warn("market pnl calculation failed",
					zap.Uint64("market_id", marketID),
					zap.Error(err))
			}
			continue
		}
		done++
	}
	return done, failed
}

// recalcMarket recomputes one market's aggregates from all persisted
// batches, writes them onto the market and fans them out to every position
// under it, inside one transaction serialized by the market advisory lock.
// positionIDs (may be empty) additionally move to nextStatus.
func recalcMarket(ctx context.Context, repo repository.Repository, marketID uint64, positionIDs []uint64, nextStatus models.TradeStatus) error {
	batchRows, err := repo.ListTradeBatchesByMarket(ctx, marketID)
	if err != nil {
		return err
	}
	prices, err := marketMarkPrices(ctx, repo, marketID)
	if err != nil {
		return err
	}

	batches := make([]trade.Batch, 0, len(batchRows))
	for _, row := range batchRows {
		batches = append(batches, trade.Batch{
			Key: trade.BatchKey{
				ConditionID: row.ConditionID,
				Outcome:     row.Outcome,
				Type:        trade.Type(row.TradeType),
				Date:        row.TradeDate.Format("2006-01-02"),
			},
			TotalShares:      row.TotalShares,
			TotalAmount:      row.TotalAmount,
			TransactionCount: row.TransactionCount,
		})
	}

	res, err := pnl.Calculate(batches, prices)
	if err != nil {
		return err
	}

	return repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := repo.LockMarketTx(ctx, tx, marketID); err != nil {
			return err
		}
		if err := repo.UpdateMarketPnlTx(ctx, tx, marketID, res.TotalInvested, res.TotalOut, res.CurrentValue, res.Pnl); err != nil {
			return err
		}
		return repo.SetTradeStatusTx(ctx, tx, positionIDs, nextStatus)
	})
}

// marketMarkPrices derives each outcome's mark price from the open
// positions under the market: value / shares of any open holder. Outcomes
// nobody holds open price at zero, which is correct for resolved losers and
// conservative for the rest.
func marketMarkPrices(ctx context.Context, repo repository.Repository, marketID uint64) (map[string]decimal.Decimal, error) {
	open := string(models.PositionOpen)
	positions, err := repo.ListPositions(ctx, repository.ListPositionsParams{
		MarketID: &marketID,
		Status:   &open,
		Limit:    500,
	})
	if err != nil {
		return nil, err
	}
	prices := map[string]decimal.Decimal{}
	for _, p := range positions {
		if _, ok := prices[p.Outcome]; ok {
			continue
		}
		if p.CurrentShares.IsPositive() {
			prices[p.Outcome] = p.AmountRemaining.Div(p.CurrentShares)
		}
	}
	return prices, nil
}

func groupByWalletMarket(positions []models.Position) []walletMarketGroup {
	index := map[[2]uint64]int{}
	var groups []walletMarketGroup
	for _, p := range positions {
		key := [2]uint64{p.WalletID, p.MarketID}
		if i, ok := index[key]; ok {
			groups[i].positionIDs = append(groups[i].positionIDs, p.ID)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, walletMarketGroup{
			wallet:      models.Wallet{ID: p.WalletID},
			marketID:    p.MarketID,
			conditionID: p.ConditionID,
			positionIDs: []uint64{p.ID},
		})
	}
	return groups
}

func walletIDsOf(groups []walletMarketGroup) []uint64 {
	seen := map[uint64]struct{}{}
	var ids []uint64
	for _, g := range groups {
		if _, ok := seen[g.wallet.ID]; ok {
			continue
		}
		seen[g.wallet.ID] = struct{}{}
		ids = append(ids, g.wallet.ID)
	}
	return ids
}
