package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smartmoney/internal/client/polymarket/data"
	"smartmoney/internal/models"
	"smartmoney/internal/repository"
)

// LeaderboardFetcher is the slice of the data-api client discovery needs.
type LeaderboardFetcher interface {
	Leaderboard(ctx context.Context, category string, offset, limit int) ([]data.LeaderboardEntry, error)
}

// WalletDiscoveryService walks the all-time PNL leaderboard per category and
// registers wallets clearing the profitability and volume floors. New
// addresses enter as NEW so the next position-sync pass does their first
// full fetch; known addresses are left untouched (insert is do-nothing on
// conflict).
type WalletDiscoveryService struct {
	Repo    repository.Repository
	Fetcher LeaderboardFetcher
	Logger  *zap.Logger

	Categories []string
	MinPnl     decimal.Decimal
	MinVolume  decimal.Decimal
	PageLimit  int
	MaxPages   int
}

func (s *WalletDiscoveryService) Run(ctx context.Context) {
	if s == nil || s.Repo == nil || s.Fetcher == nil {
		return
	}
	pageLimit := s.PageLimit
	if pageLimit <= 0 {
		pageLimit = 50
	}
	maxPages := s.MaxPages
	if maxPages <= 0 {
		maxPages = 20
	}

	now := time.Now().UTC()
	seen := map[string]struct{}{}
	var candidates []models.Wallet
	scanned, failed := 0, 0

	for _, category := range s.Categories {
		category := category
		for page := 0; page < maxPages; page++ {
			entries, err := s.Fetcher.Leaderboard(ctx, category, page*pageLimit, pageLimit)
			if err != nil {
				failed++
				if s.Logger != nil {
					s.Logger.Warn("leaderboard fetch failed",
						zap.String("category", category),
						zap.Int("page", page),
						zap.Error(err))
				}
				break
			}
			if len(entries) == 0 {
				break
			}
			scanned += len(entries)

			belowFloor := false
			for _, e := range entries {
				if e.Pnl.Decimal.LessThan(s.MinPnl) {
					// Ordered by PNL descending; everything after this is
					// below the floor too.
					belowFloor = true
					break
				}
				if e.Volume.Decimal.LessThan(s.MinVolume) {
					continue
				}
				if e.ProxyWallet == "" {
					continue
				}
				if _, ok := seen[e.ProxyWallet]; ok {
					continue
				}
				seen[e.ProxyWallet] = struct{}{}
				candidates = append(candidates, models.Wallet{
					Address:       e.ProxyWallet,
					Username:      e.UserName,
					XUsername:     strPtr(e.XUsername),
					VerifiedBadge: e.VerifiedBadge,
					ProfileImage:  strPtr(e.ProfileImage),
					Platform:      "polymarket",
					Category:      strPtr(category),
					Type:          models.WalletTypeNew,
					Active:        true,
					FirstSeenAt:   now,
				})
			}
			if belowFloor || len(entries) < pageLimit {
				break
			}
		}
	}

	if len(candidates) > 0 {
		if err := s.Repo.UpsertWallets(ctx, candidates); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("wallet discovery: upsert failed", zap.Error(err))
			}
			return
		}
	}

	s.writeSyncState(ctx, "discovery", map[string]int{
		"scanned":    scanned,
		"candidates": len(candidates),
		"categories": len(s.Categories),
		"failed":     failed,
	})
	if s.Logger != nil {
		s.Logger.Info("wallet discovery pass done",
			zap.Int("scanned", scanned),
			zap.Int("candidates", len(candidates)),
			zap.Int("categories_failed", failed))
	}
}

func (s *WalletDiscoveryService) writeSyncState(ctx context.Context, scope string, stats map[string]int) {
	now := time.Now().UTC()
	_ = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.SaveSyncStateTx(ctx, tx, &models.SyncState{
			Scope:         scope,
			LastAttemptAt: &now,
			LastSuccessAt: &now,
			StatsJSON:     statsJSON(stats),
		})
	})
}
