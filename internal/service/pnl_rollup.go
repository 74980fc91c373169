package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"smartmoney/internal/models"
	"smartmoney/internal/repository"
)

// PnlRollupService rebuilds per-wallet trailing-window rollups (30/60/90
// days by default) from the wallet's persisted per-market aggregates. Open
// and closed markets are bucketed separately so a wallet's realized and
// unrealized performance stay distinguishable.
type PnlRollupService struct {
	Repo   repository.Repository
	Logger *zap.Logger

	Workers    int
	PeriodDays []int
}

func (s *PnlRollupService) Run(ctx context.Context) {
	if s == nil || s.Repo == nil {
		return
	}
	wallets, err := s.Repo.ListActiveWallets(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("pnl rollup: list wallets failed", zap.Error(err))
		}
		return
	}
	if len(wallets) == 0 {
		return
	}
	periods := s.PeriodDays
	if len(periods) == 0 {
		periods = []int{30, 60, 90}
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 10
	}
	var mu sync.Mutex
	done, failed := 0, 0
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range wallets {
		w := wallets[i]
		g.Go(func() error {
			err := s.rollupWallet(ctx, w, periods)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if s.Logger != nil {
					s.Logger.Warn("wallet rollup failed",
						zap.String("wallet", w.Address), zap.Error(err))
				}
				return nil
			}
			done++
			return nil
		})
	}
	_ = g.Wait()

	if s.Logger != nil {
		s.Logger.Info("pnl rollup pass done",
			zap.Int("wallets", done),
			zap.Int("failed", failed),
			zap.Ints("periods", periods))
	}
}

func (s *PnlRollupService) rollupWallet(ctx context.Context, wallet models.Wallet, periods []int) error {
	now := time.Now().UTC()
	rollups := make([]models.WalletPnl, 0, len(periods))
	for _, days := range periods {
		since := now.AddDate(0, 0, -days)
		aggs, err := s.Repo.ListWalletMarketAggregates(ctx, wallet.ID, since)
		if err != nil {
			return err
		}
		r := models.WalletPnl{
			WalletID:    wallet.ID,
			PeriodDays:  days,
			WindowStart: since,
			WindowEnd:   now,
		}
		for _, a := range aggs {
			if a.Closed {
				r.ClosedInvested = r.ClosedInvested.Add(a.Invested)
				r.ClosedOut = r.ClosedOut.Add(a.Out)
			} else {
				r.OpenInvested = r.OpenInvested.Add(a.Invested)
				r.OpenOut = r.OpenOut.Add(a.Out)
				r.OpenCurrentValue = r.OpenCurrentValue.Add(a.CurrentValue)
			}
		}
		r.TotalInvested = r.OpenInvested.Add(r.ClosedInvested)
		r.TotalOut = r.OpenOut.Add(r.ClosedOut)
		r.TotalCurrentValue = r.OpenCurrentValue
		rollups = append(rollups, r)
	}

	return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.UpsertWalletPnlsTx(ctx, tx, rollups)
	})
}
