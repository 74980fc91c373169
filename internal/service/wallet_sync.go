package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"smartmoney/internal/client/polymarket/data"
	"smartmoney/internal/models"
	"smartmoney/internal/reconcile"
	"smartmoney/internal/repository"
)

// SnapshotFetcher is the slice of the data-api client the reconciler needs.
type SnapshotFetcher interface {
	OpenPositions(ctx context.Context, walletAddress string) ([]data.Position, error)
}

type WalletSyncService struct {
	Repo    repository.Repository
	Fetcher SnapshotFetcher
	Logger  *zap.Logger

	Workers        int
	WalletDeadline time.Duration
}

// ReconciliationResult reports one wallet's pass. Errors carries recoverable
// per-wallet problems; a non-nil error from ReconcileWallet means the whole
// change-set was discarded.
type ReconciliationResult struct {
	Wallet   string `json:"wallet"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Closed   int    `json:"closed"`
	Reopened int    `json:"reopened"`
	Errors   []error
}

// Run reconciles every active wallet with a bounded worker pool. One
// wallet's failure never aborts the rest; failures are logged and the
// wallet is retried on the next scheduled pass.
func (s *WalletSyncService) Run(ctx context.Context) {
	if s == nil || s.Repo == nil || s.Fetcher == nil {
		return
	}
	wallets, err := s.Repo.ListActiveWallets(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("wallet sync: list wallets failed", zap.Error(err))
		}
		return
	}
	if len(wallets) == 0 {
		return
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 20
	}

	var (
		mu                               sync.Mutex
		created, updated, closed, reopen int
		failed                           int
	)

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, w := range wallets {
		wallet := w
		g.Go(func() error {
			res, err := s.ReconcileWallet(ctx, wallet)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if s.Logger != nil {
					s.Logger.Warn("wallet reconciliation failed",
						zap.String("wallet", wallet.Address),
						zap.Error(err))
				}
				return nil
			}
			created += res.Created
			updated += res.Updated
			closed += res.Closed
			reopen += res.Reopened
			for _, e := range res.Errors {
				if s.Logger != nil {
					s.Logger.Warn("wallet reconciliation issue",
						zap.String("wallet", wallet.Address),
						zap.Error(e))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if s.Logger != nil {
		s.Logger.Info("wallet sync pass done",
			zap.Int("wallets", len(wallets)),
			zap.Int("failed", failed),
			zap.Int("created", created),
			zap.Int("updated", updated),
			zap.Int("closed", closed),
			zap.Int("reopened", reopen))
	}
	s.writeSyncState(ctx, "position_sync", map[string]int{
		"wallets":  len(wallets),
		"failed":   failed,
		"created":  created,
		"updated":  updated,
		"closed":   closed,
		"reopened": reopen,
	})
}

// ReconcileWallet fetches the wallet's open-position snapshot, diffs it
// against the persisted snapshot and applies the whole change-set as one
// transaction. On deadline or any persistence error nothing is committed
// and the wallet is picked up again next pass.
func (s *WalletSyncService) ReconcileWallet(ctx context.Context, wallet models.Wallet) (ReconciliationResult, error) {
	result := ReconciliationResult{Wallet: wallet.Address}
	if s == nil || s.Repo == nil || s.Fetcher == nil || wallet.ID == 0 {
		return result, nil
	}
	if s.WalletDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.WalletDeadline)
		defer cancel()
	}

	snapshot, err := s.Fetcher.OpenPositions(ctx, wallet.Address)
	if err != nil {
		return result, fmt.Errorf("fetch snapshot: %w", err)
	}

	marketByCondition, err := s.syncCatalog(ctx, snapshot)
	if err != nil {
		return result, fmt.Errorf("sync catalog: %w", err)
	}

	stored, err := s.Repo.ListWalletPositions(ctx, wallet.ID)
	if err != nil {
		return result, fmt.Errorf("load persisted snapshot: %w", err)
	}
	// Markets of vanished positions are absent from the snapshot but still
	// needed for the resolution check on closes.
	var missing []string
	for _, p := range stored {
		if _, ok := marketByCondition[p.ConditionID]; !ok {
			missing = append(missing, p.ConditionID)
		}
	}
	if len(missing) > 0 {
		extra, err := s.Repo.FindMarketsByConditionIDs(ctx, missing)
		if err != nil {
			return result, fmt.Errorf("load markets for persisted positions: %w", err)
		}
		for _, m := range extra {
			marketByCondition[m.ConditionID] = m
		}
	}
	// A past end date is the resolution signal the snapshot carries: markets
	// beyond it are settled, so vanished positions there close with their
	// final figures already in hand.
	asOf := time.Now().UTC()
	var resolvedIDs []uint64
	for cid, m := range marketByCondition {
		if !m.Closed && m.EndDate != nil && m.EndDate.Before(asOf) {
			m.Closed = true
			marketByCondition[cid] = m
			resolvedIDs = append(resolvedIDs, m.ID)
		}
	}
	if len(resolvedIDs) > 0 {
		if err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			return s.Repo.MarkMarketsClosedTx(ctx, tx, resolvedIDs)
		}); err != nil {
			return result, fmt.Errorf("mark resolved markets: %w", err)
		}
	}
	storedByKey := make(map[reconcile.Key]models.Position, len(stored))

	remote := make([]reconcile.Remote, 0, len(snapshot))
	for _, p := range snapshot {
		remote = append(remote, snapshotToRemote(p))
	}
	persisted := make([]reconcile.Stored, 0, len(stored))
	for _, p := range stored {
		k := reconcile.Key{ConditionID: p.ConditionID, Outcome: p.Outcome}
		storedByKey[k] = p
		persisted = append(persisted, reconcile.Stored{
			Key:          k,
			Status:       p.Status,
			TradeStatus:  p.TradeStatus,
			Shares:       p.CurrentShares,
			CurrentValue: p.AmountRemaining,
		})
	}

	changes, err := reconcile.Diff(remote, persisted, func(k reconcile.Key) bool {
		m, ok := marketByCondition[k.ConditionID]
		return ok && m.Closed
	})
	if err != nil {
		// Partition violation; a defect, not wallet data.
		return result, err
	}
	if changes.Empty() {
		return result, s.touchWallet(ctx, wallet.ID)
	}

	var upserts []models.Position
	touched := map[uint64]struct{}{}

	for _, r := range changes.Create {
		m, ok := marketByCondition[r.ConditionID]
		if !ok {
			result.Errors = append(result.Errors, fmt.Errorf("market %s missing from hierarchy", r.ConditionID))
			continue
		}
		pos := remoteToPosition(wallet.ID, m.ID, r)
		pos.TradeStatus = models.TradeStatusNeedPull
		upserts = append(upserts, pos)
		touched[m.ID] = struct{}{}
		result.Created++
	}
	for _, r := range changes.Update {
		m, ok := marketByCondition[r.ConditionID]
		if !ok {
			result.Errors = append(result.Errors, fmt.Errorf("market %s missing from hierarchy", r.ConditionID))
			continue
		}
		prev := storedByKey[reconcile.Key{ConditionID: r.ConditionID, Outcome: r.Outcome}]
		pos := remoteToPosition(wallet.ID, m.ID, r)
		// A share-count change means new trade activity: back onto the
		// trade queue. A value-only move keeps the pipeline state.
		if prev.CurrentShares.Equal(r.Shares) {
			pos.TradeStatus = prev.TradeStatus
		} else {
			pos.TradeStatus = models.TradeStatusNeedPull
		}
		upserts = append(upserts, pos)
		touched[m.ID] = struct{}{}
		result.Updated++
	}
	for _, r := range changes.Reopen {
		m, ok := marketByCondition[r.ConditionID]
		if !ok {
			result.Errors = append(result.Errors, fmt.Errorf("market %s missing from hierarchy", r.ConditionID))
			continue
		}
		pos := remoteToPosition(wallet.ID, m.ID, r)
		pos.TradeStatus = models.TradeStatusNeedPull
		upserts = append(upserts, pos)
		touched[m.ID] = struct{}{}
		result.Reopened++
	}

	var closedIDs, needDataIDs []uint64
	for _, c := range changes.Close {
		prev, ok := storedByKey[c.Key]
		if !ok {
			continue
		}
		if c.Status == models.PositionClosed {
			closedIDs = append(closedIDs, prev.ID)
		} else {
			needDataIDs = append(needDataIDs, prev.ID)
		}
		touched[prev.MarketID] = struct{}{}
		result.Closed++
	}

	now := time.Now().UTC()
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		for _, mid := range sortedIDs(touched) {
			if err := s.Repo.LockMarketTx(ctx, tx, mid); err != nil {
				return err
			}
		}
		if err := s.Repo.UpsertPositionsTx(ctx, tx, upserts); err != nil {
			return err
		}
		if err := s.Repo.UpdatePositionStatusTx(ctx, tx, closedIDs, models.PositionClosed, &now); err != nil {
			return err
		}
		if err := s.Repo.UpdatePositionStatusTx(ctx, tx, needDataIDs, models.PositionClosedNeedData, &now); err != nil {
			return err
		}
		return s.Repo.MarkWalletSyncedTx(ctx, tx, wallet.ID, now)
	})
	if err != nil {
		return ReconciliationResult{Wallet: wallet.Address}, fmt.Errorf("persist change-set: %w", err)
	}
	return result, nil
}

// syncCatalog upserts the events and markets appearing in a snapshot and
// returns the persisted markets keyed by condition id. Runs ahead of the
// position write so the hierarchy always exists before positions reference
// it.
func (s *WalletSyncService) syncCatalog(ctx context.Context, snapshot []data.Position) (map[string]models.Market, error) {
	now := time.Now().UTC()

	eventsBySlug := map[string]models.Event{}
	conditionIDs := make([]string, 0, len(snapshot))
	for _, p := range snapshot {
		if p.ConditionID == "" {
			continue
		}
		conditionIDs = append(conditionIDs, p.ConditionID)
		if p.EventSlug == "" {
			continue
		}
		if _, ok := eventsBySlug[p.EventSlug]; !ok {
			eventsBySlug[p.EventSlug] = models.Event{
				PlatformEventID: p.EventSlug,
				Slug:            p.EventSlug,
				Title:           p.Title,
				NegRisk:         p.NegativeRisk,
				LastSeenAt:      now,
			}
		}
	}
	if len(conditionIDs) == 0 {
		return map[string]models.Market{}, nil
	}

	events := make([]models.Event, 0, len(eventsBySlug))
	slugs := make([]string, 0, len(eventsBySlug))
	for slug, ev := range eventsBySlug {
		events = append(events, ev)
		slugs = append(slugs, slug)
	}
	if err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.UpsertEventsTx(ctx, tx, events)
	}); err != nil {
		return nil, err
	}
	persistedEvents, err := s.Repo.FindEventsByPlatformIDs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	eventIDBySlug := make(map[string]uint64, len(persistedEvents))
	for _, ev := range persistedEvents {
		eventIDBySlug[ev.PlatformEventID] = ev.ID
	}

	marketsByCondition := map[string]models.Market{}
	for _, p := range snapshot {
		if p.ConditionID == "" {
			continue
		}
		if _, ok := marketsByCondition[p.ConditionID]; ok {
			continue
		}
		marketsByCondition[p.ConditionID] = models.Market{
			EventID:     eventIDBySlug[p.EventSlug],
			ConditionID: p.ConditionID,
			Slug:        p.Slug,
			Question:    p.Title,
			Outcomes:    outcomePair(p.Outcome, p.OppositeOutcome),
			EndDate:     parseEndDate(p.EndDate),
			LastSeenAt:  now,
		}
	}
	markets := make([]models.Market, 0, len(marketsByCondition))
	for _, m := range marketsByCondition {
		markets = append(markets, m)
	}
	if err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.UpsertMarketsTx(ctx, tx, markets)
	}); err != nil {
		return nil, err
	}

	persisted, err := s.Repo.FindMarketsByConditionIDs(ctx, conditionIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Market, len(persisted))
	for _, m := range persisted {
		out[m.ConditionID] = m
	}
	return out, nil
}

func (s *WalletSyncService) touchWallet(ctx context.Context, walletID uint64) error {
	now := time.Now().UTC()
	return s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.MarkWalletSyncedTx(ctx, tx, walletID, now)
	})
}

func (s *WalletSyncService) writeSyncState(ctx context.Context, scope string, stats map[string]int) {
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

func snapshotToRemote(p data.Position) reconcile.Remote {
	return reconcile.Remote{
		Key:             reconcile.Key{ConditionID: p.ConditionID, Outcome: p.Outcome},
		Title:           p.Title,
		Slug:            p.Slug,
		EventSlug:       p.EventSlug,
		OppositeOutcome: p.OppositeOutcome,
		NegativeRisk:    p.NegativeRisk,
		Shares:          p.Size.Decimal,
		TotalBought:     p.TotalBought.Decimal,
		AvgEntryPrice:   p.AvgPrice.Decimal,
		CurrentPrice:    p.CurPrice.Decimal,
		CurrentValue:    p.CurrentValue.Decimal,
		AmountSpent:     p.AvgPrice.Decimal.Mul(p.TotalBought.Decimal),
		RealizedPnl:     p.RealizedPnl.Decimal,
		EndDate:         parseEndDate(p.EndDate),
	}
}

func remoteToPosition(walletID, marketID uint64, r reconcile.Remote) models.Position {
	pnl := r.RealizedPnl
	return models.Position{
		WalletID:        walletID,
		MarketID:        marketID,
		Outcome:         r.Outcome,
		ConditionID:     r.ConditionID,
		OppositeOutcome: r.OppositeOutcome,
		Title:           r.Title,
		NegativeRisk:    r.NegativeRisk,
		Status:          models.PositionOpen,
		TotalShares:     r.TotalBought,
		CurrentShares:   r.Shares,
		AvgEntryPrice:   r.AvgEntryPrice,
		AmountSpent:     r.AmountSpent,
		AmountRemaining: r.CurrentValue,
		APIRealizedPnl:  &pnl,
		EndDate:         r.EndDate,
	}
}

func outcomePair(outcome, opposite string) string {
	if outcome == "" || opposite == "" {
		return ""
	}
	// Stable order keeps both sides of a market writing the same list.
	if outcome > opposite {
		outcome, opposite = opposite, outcome
	}
	return outcome + "," + opposite
}

func parseEndDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

func sortedIDs(set map[uint64]struct{}) []uint64 {
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
