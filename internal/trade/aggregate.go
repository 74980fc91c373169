package trade

import (
	"time"

	"github.com/shopspring/decimal"
)

// Raw is one upstream activity record after type parsing. Amount and shares
// are the API-reported magnitudes (unsigned); signing happens during
// aggregation per the trade type's conventions.
type Raw struct {
	ConditionID string
	Type        Type
	Outcome     string
	Shares      decimal.Decimal
	AmountUSDC  decimal.Decimal
	Timestamp   time.Time
}

// BatchKey identifies one aggregation bucket.
type BatchKey struct {
	ConditionID string
	Outcome     string
	Type        Type
	Date        string // YYYY-MM-DD, UTC calendar date
}

// Batch accumulates signed shares and signed amount for one key.
// Investment rows carry negative amounts (cash out), divestment rows
// positive (cash in).
type Batch struct {
	Key              BatchKey
	TotalShares      decimal.Decimal
	TotalAmount      decimal.Decimal
	TransactionCount int
}

// Aggregate folds raw trades into batches. Single pass, commutative sums:
// the result does not depend on input order or on page-boundary splits.
//
// Sign conventions per type:
//   - BUY:    +shares on its outcome, -amount
//   - SELL:   -shares on its outcome, +amount
//   - SPLIT:  +shares on every outcome (amount 0) plus one cash row with
//     empty outcome carrying -amount
//   - MERGE:  -shares on every outcome (amount 0) plus one cash row with
//     empty outcome carrying +amount
//   - REDEEM: -shares, +amount, empty outcome
//
// Split/merge cash cannot be attributed to a single outcome, hence the
// dedicated empty-outcome cash rows.
//
// A record with zero shares and zero amount is a losing redeem and is
// dropped. An unknown trade type aborts the whole aggregation.
func Aggregate(trades []Raw, outcomes []string) (map[BatchKey]*Batch, error) {
	if len(outcomes) == 0 {
		outcomes = []string{"Yes", "No"}
	}
	batches := make(map[BatchKey]*Batch)
	for _, t := range trades {
		if t.Shares.IsZero() && t.AmountUSDC.IsZero() {
			continue
		}
		if _, err := DirectionFor(t.Type); err != nil {
			return nil, err
		}
		date := t.Timestamp.UTC().Format("2006-01-02")
		switch t.Type {
		case TypeBuy:
			add(batches, t.ConditionID, TypeBuy, t.Outcome, date, t.Shares, t.AmountUSDC.Neg(), 1)
		case TypeSell:
			add(batches, t.ConditionID, TypeSell, t.Outcome, date, t.Shares.Neg(), t.AmountUSDC, 1)
		case TypeSplit:
			for _, outcome := range outcomes {
				add(batches, t.ConditionID, TypeSplit, outcome, date, t.Shares, decimal.Zero, 1)
			}
			add(batches, t.ConditionID, TypeSplit, "", date, decimal.Zero, t.AmountUSDC.Neg(), 1)
		case TypeMerge:
			for _, outcome := range outcomes {
				add(batches, t.ConditionID, TypeMerge, outcome, date, t.Shares.Neg(), decimal.Zero, 1)
			}
			add(batches, t.ConditionID, TypeMerge, "", date, decimal.Zero, t.AmountUSDC, 1)
		case TypeRedeem:
			add(batches, t.ConditionID, TypeRedeem, "", date, t.Shares.Neg(), t.AmountUSDC, 1)
		}
	}
	return batches, nil
}

func add(batches map[BatchKey]*Batch, conditionID string, typ Type, outcome, date string, shares, amount decimal.Decimal, count int) {
	key := BatchKey{ConditionID: conditionID, Outcome: outcome, Type: typ, Date: date}
	b, ok := batches[key]
	if !ok {
		b = &Batch{Key: key, TotalShares: decimal.Zero, TotalAmount: decimal.Zero}
		batches[key] = b
	}
	b.TotalShares = b.TotalShares.Add(shares)
	b.TotalAmount = b.TotalAmount.Add(amount)
	b.TransactionCount += count
}
