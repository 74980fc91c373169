package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartmoney/internal/client/polymarket/data"
	"smartmoney/internal/models"
)

type stubActivityFetcher struct {
	activities []data.Activity
	err        error

	lastStart *int64
	calls     int
}

func (f *stubActivityFetcher) Activity(ctx context.Context, walletAddress, conditionID string, start, end *int64) ([]data.Activity, error) {
	f.calls++
	f.lastStart = start
	return f.activities, f.err
}

func activity(typ, side, outcome string, size, usdc float64, ts int64) data.Activity {
	return data.Activity{
		ConditionID: "0xa",
		Type:        typ,
		Side:        side,
		Outcome:     outcome,
		Size:        dec(size),
		UsdcSize:    dec(usdc),
		Timestamp:   ts,
	}
}

func queuedPosition(id uint64, status models.TradeStatus) models.Position {
	return models.Position{
		ID:          id,
		WalletID:    1,
		MarketID:    7,
		ConditionID: "0xa",
		Outcome:     "Yes",
		Status:      models.PositionOpen,
		TradeStatus: status,
	}
}

func TestTradeSync_PullAggregatesAndAdvancesQueue(t *testing.T) {
	repo := newStubRepo()
	repo.wallets = []models.Wallet{{ID: 1, Address: "0xw1"}}
	repo.markets["0xa"] = models.Market{ID: 7, ConditionID: "0xa", Outcomes: "Yes,No"}
	repo.queue[models.TradeStatusNeedPull] = []models.Position{queuedPosition(11, models.TradeStatusNeedPull)}

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Unix()
	fetcher := &stubActivityFetcher{activities: []data.Activity{
		activity("TRADE", "BUY", "Yes", 100, 55, ts),
		activity("TRADE", "SELL", "Yes", 40, 28, ts+60),
	}}

	svc := &TradeSyncService{Repo: repo, Fetcher: fetcher}
	done, failed := svc.pullTrades(context.Background())
	if done != 1 || failed != 0 {
		t.Fatalf("done=%d failed=%d", done, failed)
	}
	if len(repo.upsertedBatches) != 2 {
		t.Fatalf("batches=%d want 2", len(repo.upsertedBatches))
	}
	for _, b := range repo.upsertedBatches {
		if b.WalletID != 1 || b.MarketID != 7 {
			t.Fatalf("batch keys wrong: %+v", b)
		}
	}
	if got := repo.tradeStatusSets[models.TradeStatusNeedCalculate]; len(got) != 1 || got[0] != 11 {
		t.Fatalf("queue advance=%v want [11]", got)
	}
	if len(repo.savedCursors) != 1 {
		t.Fatalf("cursors=%d want 1", len(repo.savedCursors))
	}
	cursor := repo.savedCursors[0]
	if cursor.LatestFetchedAt == nil || *cursor.LatestFetchedAt != ts+60 {
		t.Fatalf("watermark=%v want %d", cursor.LatestFetchedAt, ts+60)
	}
}

func TestTradeSync_IncrementalStartsAtWatermarkDay(t *testing.T) {
	repo := newStubRepo()
	repo.wallets = []models.Wallet{{ID: 1, Address: "0xw1"}}
	repo.markets["0xa"] = models.Market{ID: 7, ConditionID: "0xa"}
	repo.queue[models.TradeStatusNeedPull] = []models.Position{queuedPosition(11, models.TradeStatusNeedPull)}
	mark := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Unix()
	repo.cursors[[2]uint64{1, 7}] = &models.FetchCursor{WalletID: 1, MarketID: 7, LatestFetchedAt: &mark}

	fetcher := &stubActivityFetcher{}
	svc := &TradeSyncService{Repo: repo, Fetcher: fetcher}
	done, failed := svc.pullTrades(context.Background())
	if done != 1 || failed != 0 {
		t.Fatalf("done=%d failed=%d", done, failed)
	}
	// the fetch window opens at the start of the watermark's UTC day, not at
	// the watermark itself
	dayStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix()
	if fetcher.lastStart == nil || *fetcher.lastStart != dayStart {
		t.Fatalf("start=%v want %d", fetcher.lastStart, dayStart)
	}
	// nothing fetched: the old watermark survives
	if repo.savedCursors[0].LatestFetchedAt == nil || *repo.savedCursors[0].LatestFetchedAt != mark {
		t.Fatalf("watermark=%v want %d", repo.savedCursors[0].LatestFetchedAt, mark)
	}
}

// windowedActivityFetcher serves only the activities at or after the
// requested start, the way the real endpoint filters by timestamp.
type windowedActivityFetcher struct {
	activities []data.Activity
}

func (f *windowedActivityFetcher) Activity(ctx context.Context, walletAddress, conditionID string, start, end *int64) ([]data.Activity, error) {
	var out []data.Activity
	for _, a := range f.activities {
		if start != nil && a.Timestamp < *start {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func TestTradeSync_MidDayWatermarkKeepsDayTotalComplete(t *testing.T) {
	repo := newStubRepo()
	repo.wallets = []models.Wallet{{ID: 1, Address: "0xw1"}}
	repo.markets["0xa"] = models.Market{ID: 7, ConditionID: "0xa", Outcomes: "Yes,No"}
	repo.queue[models.TradeStatusNeedPull] = []models.Position{queuedPosition(11, models.TradeStatusNeedPull)}

	// watermark mid-day: the morning buy is already persisted as part of the
	// day's batch, the afternoon buy is new
	morning := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Unix()
	afternoon := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC).Unix()
	repo.cursors[[2]uint64{1, 7}] = &models.FetchCursor{WalletID: 1, MarketID: 7, LatestFetchedAt: &morning}
	repo.tradeRows = []models.TradeBatch{{
		WalletID: 1, MarketID: 7, ConditionID: "0xa", Outcome: "Yes",
		TradeType: "BUY", TradeDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		TotalShares: decimal.NewFromInt(100), TotalAmount: decimal.NewFromInt(-55),
	}}
	fetcher := &windowedActivityFetcher{activities: []data.Activity{
		activity("TRADE", "BUY", "Yes", 100, 55, morning),
		activity("TRADE", "BUY", "Yes", 50, 30, afternoon),
	}}

	svc := &TradeSyncService{Repo: repo, Fetcher: fetcher}
	done, failed := svc.pullTrades(context.Background())
	if done != 1 || failed != 0 {
		t.Fatalf("done=%d failed=%d", done, failed)
	}
	// the re-run covers the whole boundary day, so the overwrite-keyed batch
	// carries the full day's totals, not just the post-watermark slice
	if len(repo.upsertedBatches) != 1 {
		t.Fatalf("batches=%d want 1", len(repo.upsertedBatches))
	}
	b := repo.upsertedBatches[0]
	if !b.TotalShares.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("shares=%s want 150", b.TotalShares)
	}
	if !b.TotalAmount.Equal(decimal.NewFromInt(-85)) {
		t.Fatalf("amount=%s want -85", b.TotalAmount)
	}
	if b.TransactionCount != 2 {
		t.Fatalf("count=%d want 2", b.TransactionCount)
	}
	if cursor := repo.savedCursors[0]; cursor.LatestFetchedAt == nil || *cursor.LatestFetchedAt != afternoon {
		t.Fatalf("watermark=%v want %d", cursor.LatestFetchedAt, afternoon)
	}
}

func TestTradeSync_UnknownTypeLeavesMarketQueued(t *testing.T) {
	repo := newStubRepo()
	repo.wallets = []models.Wallet{{ID: 1, Address: "0xw1"}}
	repo.markets["0xa"] = models.Market{ID: 7, ConditionID: "0xa"}
	repo.queue[models.TradeStatusNeedPull] = []models.Position{queuedPosition(11, models.TradeStatusNeedPull)}

	fetcher := &stubActivityFetcher{activities: []data.Activity{
		activity("REWARD", "", "Yes", 1, 1, 1770000000),
	}}
	svc := &TradeSyncService{Repo: repo, Fetcher: fetcher}
	done, failed := svc.pullTrades(context.Background())
	if done != 0 || failed != 1 {
		t.Fatalf("done=%d failed=%d want 0/1", done, failed)
	}
	if len(repo.upsertedBatches) != 0 {
		t.Fatalf("batches=%d want none persisted", len(repo.upsertedBatches))
	}
	if len(repo.tradeStatusSets[models.TradeStatusNeedCalculate]) != 0 {
		t.Fatalf("queue advanced despite unknown type")
	}
}

func TestTradeSync_CalculateFansOutMarketFigures(t *testing.T) {
	repo := newStubRepo()
	repo.queue[models.TradeStatusNeedCalculate] = []models.Position{queuedPosition(11, models.TradeStatusNeedCalculate)}
	repo.tradeRows = []models.TradeBatch{
		{
			WalletID: 1, MarketID: 7, ConditionID: "0xa", Outcome: "Yes",
			TradeType: "BUY", TradeDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			TotalShares: decimal.NewFromInt(100), TotalAmount: decimal.NewFromInt(-55),
		},
	}
	// open position carrying the market's mark: 60 value / 100 shares = 0.6
	repo.positions = []models.Position{{
		ID: 11, WalletID: 1, MarketID: 7, ConditionID: "0xa", Outcome: "Yes",
		Status:          models.PositionOpen,
		CurrentShares:   decimal.NewFromInt(100),
		AmountRemaining: decimal.NewFromInt(60),
	}}

	svc := &TradeSyncService{Repo: repo}
	done, failed := svc.calculatePnl(context.Background())
	if done != 1 || failed != 0 {
		t.Fatalf("done=%d failed=%d", done, failed)
	}
	if len(repo.lockedMarkets) != 1 || repo.lockedMarkets[0] != 7 {
		t.Fatalf("locked=%v want [7]", repo.lockedMarkets)
	}
	figures, ok := repo.marketPnlWrites[7]
	if !ok {
		t.Fatalf("no market pnl write")
	}
	if !figures[0].Equal(decimal.NewFromInt(55)) {
		t.Fatalf("invested=%s want 55", figures[0])
	}
	if !figures[1].IsZero() {
		t.Fatalf("out=%s want 0", figures[1])
	}
	if !figures[2].Equal(decimal.NewFromInt(60)) {
		t.Fatalf("value=%s want 60", figures[2])
	}
	if !figures[3].Equal(decimal.NewFromInt(5)) {
		t.Fatalf("pnl=%s want 5", figures[3])
	}
	if got := repo.tradeStatusSets[models.TradeStatusSynced]; len(got) != 1 || got[0] != 11 {
		t.Fatalf("queue advance=%v want [11]", got)
	}
}

func TestTradeSync_InconsistentMarketSkipped(t *testing.T) {
	repo := newStubRepo()
	repo.queue[models.TradeStatusNeedCalculate] = []models.Position{queuedPosition(11, models.TradeStatusNeedCalculate)}
	repo.tradeRows = []models.TradeBatch{
		{
			WalletID: 1, MarketID: 7, ConditionID: "0xa", Outcome: "Yes",
			TradeType: "SELL", TradeDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			TotalShares: decimal.NewFromInt(-120), TotalAmount: decimal.NewFromInt(70),
		},
	}

	svc := &TradeSyncService{Repo: repo}
	done, failed := svc.calculatePnl(context.Background())
	if done != 0 || failed != 1 {
		t.Fatalf("done=%d failed=%d want 0/1", done, failed)
	}
	if len(repo.marketPnlWrites) != 0 {
		t.Fatalf("figures written for inconsistent market")
	}
	if len(repo.tradeStatusSets[models.TradeStatusSynced]) != 0 {
		t.Fatalf("queue advanced for inconsistent market")
	}
}
