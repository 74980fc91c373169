package pnl

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"smartmoney/internal/trade"
)

func batch(typ trade.Type, outcome string, shares, amount float64) trade.Batch {
	return trade.Batch{
		Key: trade.BatchKey{
			ConditionID: "0xabc",
			Outcome:     outcome,
			Type:        typ,
			Date:        "2026-03-01",
		},
		TotalShares: decimal.NewFromFloat(shares),
		TotalAmount: decimal.NewFromFloat(amount),
	}
}

func TestCalculate_BuyOnly(t *testing.T) {
	res, err := Calculate([]trade.Batch{
		batch(trade.TypeBuy, "Yes", 100, -55),
	}, map[string]decimal.Decimal{"Yes": decimal.NewFromFloat(0.6)})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.TotalInvested.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("invested=%s want 55", res.TotalInvested)
	}
	if !res.TotalOut.IsZero() {
		t.Fatalf("out=%s want 0", res.TotalOut)
	}
	if !res.CurrentValue.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("value=%s want 60", res.CurrentValue)
	}
	if !res.Pnl.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("pnl=%s want 5", res.Pnl)
	}
}

// A split is cash-neutral at even prices: $50 buys 50 shares of each
// outcome, and with prices summing to 1 the value equals the outlay.
func TestCalculate_BuyPlusSplit(t *testing.T) {
	res, err := Calculate([]trade.Batch{
		batch(trade.TypeSplit, "Yes", 50, 0),
		batch(trade.TypeSplit, "No", 50, 0),
		batch(trade.TypeSplit, "", 0, -50),
	}, map[string]decimal.Decimal{
		"Yes": decimal.NewFromFloat(0.6),
		"No":  decimal.NewFromFloat(0.4),
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.TotalInvested.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("invested=%s want 50", res.TotalInvested)
	}
	if !res.CurrentValue.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("value=%s want 50", res.CurrentValue)
	}
	if !res.Pnl.IsZero() {
		t.Fatalf("pnl=%s want 0", res.Pnl)
	}
}

func TestCalculate_RoundTripIdentity(t *testing.T) {
	// buy 100 @ 0.55, sell all @ 0.7: pnl must be exactly out - invested
	res, err := Calculate([]trade.Batch{
		batch(trade.TypeBuy, "Yes", 100, -55),
		batch(trade.TypeSell, "Yes", -100, 70),
	}, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.CurrentValue.IsZero() {
		t.Fatalf("value=%s want 0", res.CurrentValue)
	}
	if !res.Pnl.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("pnl=%s want 15", res.Pnl)
	}
}

func TestCalculate_MissingPriceValuesAtZero(t *testing.T) {
	res, err := Calculate([]trade.Batch{
		batch(trade.TypeBuy, "Yes", 100, -55),
	}, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.CurrentValue.IsZero() {
		t.Fatalf("value=%s want 0", res.CurrentValue)
	}
	if !res.Pnl.Equal(decimal.NewFromInt(-55)) {
		t.Fatalf("pnl=%s want -55", res.Pnl)
	}
}

func TestCalculate_NegativeOutstandingIsError(t *testing.T) {
	_, err := Calculate([]trade.Batch{
		batch(trade.TypeBuy, "Yes", 100, -55),
		batch(trade.TypeSell, "Yes", -120, 70),
	}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	var inconsistent *InconsistencyError
	if !errors.As(err, &inconsistent) {
		t.Fatalf("err=%v want InconsistencyError", err)
	}
	if inconsistent.Outcome != "Yes" {
		t.Fatalf("outcome=%q want Yes", inconsistent.Outcome)
	}
	if !inconsistent.Shares.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("shares=%s want -20", inconsistent.Shares)
	}
}

func TestCalculate_EmptyBatches(t *testing.T) {
	res, err := Calculate(nil, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.Pnl.IsZero() || !res.TotalInvested.IsZero() || !res.TotalOut.IsZero() {
		t.Fatalf("want all-zero result, got %+v", res)
	}
}
