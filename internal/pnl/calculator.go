package pnl

import (
	"fmt"

	"github.com/shopspring/decimal"

	"smartmoney/internal/trade"
)

// Result holds the market-level aggregates. They are computed once per
// market and copied verbatim onto every position in the market: merge and
// split cash rows carry no outcome, so the figures cannot be attributed
// per-position.
type Result struct {
	TotalInvested decimal.Decimal
	TotalOut      decimal.Decimal
	CurrentValue  decimal.Decimal
	Pnl           decimal.Decimal
}

// InconsistencyError reports upstream data that cannot be reconciled into a
// coherent market history, such as more shares divested than ever acquired.
// The figures are reported as-is, never clamped.
type InconsistencyError struct {
	ConditionID string
	Outcome     string
	Shares      decimal.Decimal
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("negative outstanding shares %s for market %s outcome %q",
		e.Shares.String(), e.ConditionID, e.Outcome)
}

// Calculate derives the market aggregates from all of its trade batches and
// a mark price per outcome.
//
//	totalInvested = -Σ amount over investment batches (their amounts are negative)
//	totalOut      =  Σ amount over divestment batches
//	currentValue  =  Σ outstanding shares per outcome × mark price
//	pnl           = totalOut + currentValue − totalInvested
//
// Outstanding shares for an outcome going negative means the upstream
// history is inconsistent; the error carries the offending outcome so the
// caller can exclude the market and keep going.
func Calculate(batches []trade.Batch, prices map[string]decimal.Decimal) (Result, error) {
	invested := decimal.Zero
	out := decimal.Zero
	outstanding := make(map[string]decimal.Decimal)
	for _, b := range batches {
		dir, err := trade.DirectionFor(b.Key.Type)
		if err != nil {
			return Result{}, err
		}
		switch dir {
		case trade.DirectionInvestment:
			invested = invested.Sub(b.TotalAmount)
		case trade.DirectionDivestment:
			out = out.Add(b.TotalAmount)
		}
		if b.Key.Outcome != "" {
			outstanding[b.Key.Outcome] = outstanding[b.Key.Outcome].Add(b.TotalShares)
		}
	}

	value := decimal.Zero
	for outcome, shares := range outstanding {
		if shares.IsNegative() {
			var conditionID string
			if len(batches) > 0 {
				conditionID = batches[0].Key.ConditionID
			}
			return Result{}, &InconsistencyError{ConditionID: conditionID, Outcome: outcome, Shares: shares}
		}
		value = value.Add(shares.Mul(prices[outcome]))
	}

	return Result{
		TotalInvested: invested,
		TotalOut:      out,
		CurrentValue:  value,
		Pnl:           out.Add(value).Sub(invested),
	}, nil
}
