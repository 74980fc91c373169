package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"smartmoney/internal/models"
	"smartmoney/internal/reconcile"
	"smartmoney/internal/repository"
)

// ValueRefreshService re-reads the open-position snapshot of every active
// wallet and refreshes the value fields (current shares, amount remaining)
// of positions that are still open, then recomputes the aggregates of every
// market whose mark price moved. It never changes position or trade status;
// lifecycle transitions belong to WalletSyncService.
type ValueRefreshService struct {
	Repo    repository.Repository
	Fetcher SnapshotFetcher
	Logger  *zap.Logger

	Workers int
}

func (s *ValueRefreshService) Run(ctx context.Context) {
	if s == nil || s.Repo == nil || s.Fetcher == nil {
		return
	}
	wallets, err := s.Repo.ListActiveWallets(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("value refresh: list wallets failed", zap.Error(err))
		}
		return
	}
	if len(wallets) == 0 {
		return
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 10
	}
	var mu sync.Mutex
	touched := map[uint64]struct{}{}
	refreshed, failed := 0, 0
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range wallets {
		w := wallets[i]
		g.Go(func() error {
			markets, err := s.refreshWallet(ctx, w)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if s.Logger != nil {
					s.Logger.Warn("value refresh failed",
						zap.String("wallet", w.Address), zap.Error(err))
				}
				return nil
			}
			refreshed++
			for _, id := range markets {
				touched[id] = struct{}{}
			}
			return nil
		})
	}
	_ = g.Wait()

	recalced, recalcFailed := 0, 0
	for _, marketID := range sortedIDs(touched) {
		if err := recalcMarket(ctx, s.Repo, marketID, nil, models.TradeStatusSynced); err != nil {
			recalcFailed++
			if s.Logger != nil {
				s.Logger.Warn("value refresh: market recalc failed",
					zap.Uint64("market_id", marketID), zap.Error(err))
			}
			continue
		}
		recalced++
	}

	if s.Logger != nil {
		s.Logger.Info("value refresh pass done",
			zap.Int("wallets_refreshed", refreshed),
			zap.Int("wallets_failed", failed),
			zap.Int("markets_recalculated", recalced),
			zap.Int("markets_failed", recalcFailed))
	}
}

// refreshWallet updates value fields of the wallet's open positions from a
// fresh snapshot and returns the market IDs whose figures changed.
func (s *ValueRefreshService) refreshWallet(ctx context.Context, wallet models.Wallet) ([]uint64, error) {
	snapshot, err := s.Fetcher.OpenPositions(ctx, wallet.Address)
	if err != nil {
		return nil, err
	}
	stored, err := s.Repo.ListWalletPositions(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	remoteByKey := map[reconcile.Key]int{}
	for i, p := range snapshot {
		remoteByKey[reconcile.Key{ConditionID: p.ConditionID, Outcome: p.Outcome}] = i
	}

	var (
		updates []models.Position
		markets = map[uint64]struct{}{}
	)
	for _, pos := range stored {
		if pos.Status != models.PositionOpen {
			continue
		}
		i, ok := remoteByKey[reconcile.Key{ConditionID: pos.ConditionID, Outcome: pos.Outcome}]
		if !ok {
			continue
		}
		remote := snapshot[i]
		if pos.CurrentShares.Equal(remote.Size.Decimal) &&
			pos.AmountRemaining.Equal(remote.CurrentValue.Decimal) {
			continue
		}
		pos.CurrentShares = remote.Size.Decimal
		pos.AmountRemaining = remote.CurrentValue.Decimal
		pos.TotalShares = remote.TotalBought.Decimal
		rp := remote.RealizedPnl.Decimal
		pos.APIRealizedPnl = &rp
		updates = append(updates, pos)
		markets[pos.MarketID] = struct{}{}
	}
	if len(updates) == 0 {
		return nil, nil
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.UpsertPositionsTx(ctx, tx, updates)
	})
	if err != nil {
		return nil, err
	}

	return sortedIDs(markets), nil
}
