package trade

import (
	"fmt"
	"strings"
)

// Type enumerates the five upstream trade kinds.
type Type string

const (
	TypeBuy    Type = "BUY"
	TypeSell   Type = "SELL"
	TypeSplit  Type = "SPLIT"
	TypeMerge  Type = "MERGE"
	TypeRedeem Type = "REDEEM"
)

// Direction is the directional class of a trade type: investment moves cash
// out and shares in, divestment the reverse.
type Direction string

const (
	DirectionInvestment Direction = "INVESTMENT"
	DirectionDivestment Direction = "DIVESTMENT"
)

// ErrUnknownTradeType marks a trade type outside the documented five. A
// misclassified trade corrupts PNL for every position in its market, so
// unknown types are a hard failure for the caller, never a silent drop.
type ErrUnknownTradeType struct {
	Raw string
}

func (e *ErrUnknownTradeType) Error() string {
	return fmt.Sprintf("unknown trade type %q", e.Raw)
}

// DirectionFor classifies a trade type. Total over the five known types.
func DirectionFor(t Type) (Direction, error) {
	switch t {
	case TypeBuy, TypeSplit:
		return DirectionInvestment, nil
	case TypeSell, TypeMerge, TypeRedeem:
		return DirectionDivestment, nil
	default:
		return "", &ErrUnknownTradeType{Raw: string(t)}
	}
}

// ParseType maps an upstream activity record to a trade type. The API
// reports TRADE with a BUY/SELL side; MERGE, SPLIT and REDEEM are standalone.
func ParseType(apiType, side string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(apiType)) {
	case "TRADE":
		switch strings.ToUpper(strings.TrimSpace(side)) {
		case "BUY":
			return TypeBuy, nil
		case "SELL":
			return TypeSell, nil
		default:
			return "", fmt.Errorf("invalid side %q for TRADE activity", side)
		}
	case "MERGE":
		return TypeMerge, nil
	case "SPLIT":
		return TypeSplit, nil
	case "REDEEM":
		return TypeRedeem, nil
	default:
		return "", &ErrUnknownTradeType{Raw: apiType}
	}
}
