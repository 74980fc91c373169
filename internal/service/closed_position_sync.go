package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"smartmoney/internal/client/polymarket/data"
	"smartmoney/internal/models"
	"smartmoney/internal/repository"
)

// ClosedPositionFetcher is the slice of the data-api client the closure
// backfill needs.
type ClosedPositionFetcher interface {
	ClosedPositionsForMarket(ctx context.Context, walletAddress, conditionID string) ([]data.Position, error)
}

// ClosedPositionSyncService backfills positions stuck in CLOSED_NEED_DATA:
// a position that vanished from the open snapshot before its market
// resolved has no final figures yet. The closed-positions endpoint supplies
// them; once recorded the position moves to CLOSED and is re-queued for a
// final trade pull so the market's aggregates pick up the exit trades.
type ClosedPositionSyncService struct {
	Repo    repository.Repository
	Fetcher ClosedPositionFetcher
	Logger  *zap.Logger

	Workers   int
	BatchSize int
}

func (s *ClosedPositionSyncService) Run(ctx context.Context) {
	if s == nil || s.Repo == nil || s.Fetcher == nil {
		return
	}
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	positions, err := s.Repo.ListPositionsByStatus(ctx, models.PositionClosedNeedData, batchSize)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("closed sync: list queue failed", zap.Error(err))
		}
		return
	}
	if len(positions) == 0 {
		return
	}

	groups := groupByWalletMarket(positions)
	wallets, err := s.Repo.FindWalletsByIDs(ctx, walletIDsOf(groups))
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("closed sync: load wallets failed", zap.Error(err))
		}
		return
	}
	walletByID := make(map[uint64]models.Wallet, len(wallets))
	for _, w := range wallets {
		walletByID[w.ID] = w
	}
	posByID := make(map[uint64]models.Position, len(positions))
	for _, p := range positions {
		posByID[p.ID] = p
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 5
	}
	var mu sync.Mutex
	done, pending, failed := 0, 0, 0
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range groups {
		grp := groups[i]
		wallet, ok := walletByID[grp.wallet.ID]
		if !ok {
			continue
		}
		g.Go(func() error {
			finalized, err := s.backfillGroup(ctx, wallet, grp, posByID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if s.Logger != nil {
					s.Logger.Warn("closed position backfill failed",
						zap.String("wallet", wallet.Address),
						zap.String("market", grp.conditionID),
						zap.Error(err))
				}
				return nil
			}
			done += finalized
			pending += len(grp.positionIDs) - finalized
			return nil
		})
	}
	_ = g.Wait()

	if s.Logger != nil {
		s.Logger.Info("closed position sync pass done",
			zap.Int("finalized", done),
			zap.Int("still_pending", pending),
			zap.Int("groups_failed", failed))
	}
}

// backfillGroup finalizes the group's positions that appear in the wallet's
// closed positions for the market. Positions the endpoint has not surfaced
// yet stay in CLOSED_NEED_DATA for the next pass.
func (s *ClosedPositionSyncService) backfillGroup(ctx context.Context, wallet models.Wallet, grp walletMarketGroup, posByID map[uint64]models.Position) (int, error) {
	closed, err := s.Fetcher.ClosedPositionsForMarket(ctx, wallet.Address, grp.conditionID)
	if err != nil {
		return 0, err
	}
	closedByOutcome := make(map[string]data.Position, len(closed))
	for _, p := range closed {
		closedByOutcome[p.Outcome] = p
	}

	var (
		finals      []models.Position
		finalizedID []uint64
	)
	for _, id := range grp.positionIDs {
		pos, ok := posByID[id]
		if !ok {
			continue
		}
		remote, ok := closedByOutcome[pos.Outcome]
		if !ok {
			continue
		}
		pos.CurrentShares = decimal.Zero
		pos.AmountRemaining = decimal.Zero
		pos.TotalShares = remote.TotalBought.Decimal
		pos.AvgEntryPrice = remote.AvgPrice.Decimal
		pos.AmountSpent = remote.AvgPrice.Decimal.Mul(remote.TotalBought.Decimal)
		rp := remote.RealizedPnl.Decimal
		pos.APIRealizedPnl = &rp
		pos.Status = models.PositionClosed
		// Final figures changed the trade history we know about; pull it.
		pos.TradeStatus = models.TradeStatusNeedPull
		finals = append(finals, pos)
		finalizedID = append(finalizedID, id)
	}
	if len(finals) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.UpsertPositionsTx(ctx, tx, finals); err != nil {
			return err
		}
		return s.Repo.UpdatePositionStatusTx(ctx, tx, finalizedID, models.PositionClosed, &now)
	})
	if err != nil {
		return 0, err
	}
	return len(finals), nil
}
