package trade

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var day = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func raw(typ Type, outcome string, shares, amount float64, ts time.Time) Raw {
	return Raw{
		ConditionID: "0xabc",
		Type:        typ,
		Outcome:     outcome,
		Shares:      decimal.NewFromFloat(shares),
		AmountUSDC:  decimal.NewFromFloat(amount),
		Timestamp:   ts,
	}
}

func TestAggregate_BuySellSigns(t *testing.T) {
	batches, err := Aggregate([]Raw{
		raw(TypeBuy, "Yes", 100, 55, day),
		raw(TypeBuy, "Yes", 50, 30, day.Add(time.Hour)),
		raw(TypeSell, "Yes", 40, 28, day),
	}, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("len=%d want 2", len(batches))
	}
	buy := batches[BatchKey{ConditionID: "0xabc", Outcome: "Yes", Type: TypeBuy, Date: "2026-03-01"}]
	if buy == nil {
		t.Fatalf("buy batch missing")
	}
	if !buy.TotalShares.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("buy shares=%s want 150", buy.TotalShares)
	}
	if !buy.TotalAmount.Equal(decimal.NewFromInt(-85)) {
		t.Fatalf("buy amount=%s want -85", buy.TotalAmount)
	}
	if buy.TransactionCount != 2 {
		t.Fatalf("buy count=%d want 2", buy.TransactionCount)
	}
	sell := batches[BatchKey{ConditionID: "0xabc", Outcome: "Yes", Type: TypeSell, Date: "2026-03-01"}]
	if sell == nil {
		t.Fatalf("sell batch missing")
	}
	if !sell.TotalShares.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("sell shares=%s want -40", sell.TotalShares)
	}
	if !sell.TotalAmount.Equal(decimal.NewFromInt(28)) {
		t.Fatalf("sell amount=%s want 28", sell.TotalAmount)
	}
}

func TestAggregate_SplitExpandsPerOutcome(t *testing.T) {
	batches, err := Aggregate([]Raw{
		raw(TypeSplit, "", 50, 50, day),
	}, []string{"Yes", "No"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	// one share row per outcome plus the cash row
	if len(batches) != 3 {
		t.Fatalf("len=%d want 3", len(batches))
	}
	for _, outcome := range []string{"Yes", "No"} {
		b := batches[BatchKey{ConditionID: "0xabc", Outcome: outcome, Type: TypeSplit, Date: "2026-03-01"}]
		if b == nil {
			t.Fatalf("%s share row missing", outcome)
		}
		if !b.TotalShares.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("%s shares=%s want 50", outcome, b.TotalShares)
		}
		if !b.TotalAmount.IsZero() {
			t.Fatalf("%s amount=%s want 0", outcome, b.TotalAmount)
		}
	}
	cash := batches[BatchKey{ConditionID: "0xabc", Outcome: "", Type: TypeSplit, Date: "2026-03-01"}]
	if cash == nil {
		t.Fatalf("cash row missing")
	}
	if !cash.TotalShares.IsZero() {
		t.Fatalf("cash shares=%s want 0", cash.TotalShares)
	}
	if !cash.TotalAmount.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("cash amount=%s want -50", cash.TotalAmount)
	}
}

func TestAggregate_MergeMirrorsSplit(t *testing.T) {
	batches, err := Aggregate([]Raw{
		raw(TypeMerge, "", 30, 30, day),
	}, []string{"Yes", "No"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	yes := batches[BatchKey{ConditionID: "0xabc", Outcome: "Yes", Type: TypeMerge, Date: "2026-03-01"}]
	if yes == nil || !yes.TotalShares.Equal(decimal.NewFromInt(-30)) {
		t.Fatalf("yes merge row wrong: %+v", yes)
	}
	cash := batches[BatchKey{ConditionID: "0xabc", Outcome: "", Type: TypeMerge, Date: "2026-03-01"}]
	if cash == nil || !cash.TotalAmount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("merge cash row wrong: %+v", cash)
	}
}

func TestAggregate_RedeemAndLosingRedeemDropped(t *testing.T) {
	batches, err := Aggregate([]Raw{
		raw(TypeRedeem, "Yes", 100, 100, day),
		raw(TypeRedeem, "No", 0, 0, day), // worthless side, dropped
	}, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("len=%d want 1", len(batches))
	}
	b := batches[BatchKey{ConditionID: "0xabc", Outcome: "", Type: TypeRedeem, Date: "2026-03-01"}]
	if b == nil {
		t.Fatalf("redeem row missing")
	}
	if !b.TotalShares.Equal(decimal.NewFromInt(-100)) || !b.TotalAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("redeem row=%+v", b)
	}
}

func TestAggregate_SplitsByCalendarDate(t *testing.T) {
	batches, err := Aggregate([]Raw{
		raw(TypeBuy, "Yes", 10, 5, day),
		raw(TypeBuy, "Yes", 10, 5, day.AddDate(0, 0, 1)),
	}, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("len=%d want 2", len(batches))
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	trades := []Raw{
		raw(TypeBuy, "Yes", 100, 55, day),
		raw(TypeSell, "Yes", 40, 28, day),
		raw(TypeSplit, "", 20, 20, day),
		raw(TypeBuy, "No", 30, 12, day),
	}
	reversed := make([]Raw, len(trades))
	for i, tr := range trades {
		reversed[len(trades)-1-i] = tr
	}
	a, err := Aggregate(trades, []string{"Yes", "No"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	b, err := Aggregate(reversed, []string{"Yes", "No"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("len mismatch %d vs %d", len(a), len(b))
	}
	for key, batch := range a {
		other := b[key]
		if other == nil {
			t.Fatalf("key %+v missing from reversed run", key)
		}
		if !batch.TotalShares.Equal(other.TotalShares) ||
			!batch.TotalAmount.Equal(other.TotalAmount) ||
			batch.TransactionCount != other.TransactionCount {
			t.Fatalf("key %+v: %+v vs %+v", key, batch, other)
		}
	}
}

func TestAggregate_UnknownTypeAborts(t *testing.T) {
	_, err := Aggregate([]Raw{
		raw(TypeBuy, "Yes", 10, 5, day),
		raw(Type("REWARD"), "Yes", 1, 1, day),
	}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	var unknown *ErrUnknownTradeType
	if !errors.As(err, &unknown) {
		t.Fatalf("err=%v want ErrUnknownTradeType", err)
	}
}
