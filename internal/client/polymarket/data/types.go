package data

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal tolerates both string and number encodings; the data-api mixes
// the two across endpoints.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		val, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = val
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		d.Decimal = decimal.NewFromFloat(f)
		return nil
	}
	return fmt.Errorf("invalid decimal: %s", string(b))
}

// Position is one row of the /positions or /closed-positions endpoints.
// Open rows carry Size/CurrentValue/CurPrice; closed rows carry RealizedPnl
// and Timestamp instead.
type Position struct {
	ProxyWallet     string  `json:"proxyWallet"`
	ConditionID     string  `json:"conditionId"`
	Asset           string  `json:"asset"`
	EventSlug       string  `json:"eventSlug"`
	Slug            string  `json:"slug"`
	Title           string  `json:"title"`
	Outcome         string  `json:"outcome"`
	OppositeOutcome string  `json:"oppositeOutcome"`
	AvgPrice        Decimal `json:"avgPrice"`
	TotalBought     Decimal `json:"totalBought"`
	EndDate         string  `json:"endDate"`
	NegativeRisk    bool    `json:"negativeRisk"`

	Size         Decimal `json:"size"`
	CurPrice     Decimal `json:"curPrice"`
	CurrentValue Decimal `json:"currentValue"`

	RealizedPnl Decimal `json:"realizedPnl"`
	Timestamp   int64   `json:"timestamp"`
}

// Activity is one row of the /activity endpoint.
type Activity struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Timestamp       int64   `json:"timestamp"`
	ConditionID     string  `json:"conditionId"`
	Type            string  `json:"type"`
	Size            Decimal `json:"size"`
	UsdcSize        Decimal `json:"usdcSize"`
	TransactionHash string  `json:"transactionHash"`
	Price           Decimal `json:"price"`
	Asset           string  `json:"asset"`
	Side            string  `json:"side"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	Outcome         string  `json:"outcome"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	EventSlug       string  `json:"eventSlug"`
}

// LeaderboardEntry is one row of /v1/leaderboard.
type LeaderboardEntry struct {
	ProxyWallet   string  `json:"proxyWallet"`
	UserName      string  `json:"userName"`
	Pnl           Decimal `json:"pnl"`
	Volume        Decimal `json:"vol"`
	ProfileImage  string  `json:"profileImage"`
	XUsername     string  `json:"xUsername"`
	VerifiedBadge bool    `json:"verifiedBadge"`
	Rank          int     `json:"rank"`
}
