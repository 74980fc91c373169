package trade

import (
	"errors"
	"testing"
)

func TestParseType_TradeSides(t *testing.T) {
	typ, err := ParseType("TRADE", "BUY")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if typ != TypeBuy {
		t.Fatalf("typ=%s want BUY", typ)
	}
	typ, err = ParseType("trade", "sell")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if typ != TypeSell {
		t.Fatalf("typ=%s want SELL", typ)
	}
}

func TestParseType_Standalone(t *testing.T) {
	cases := map[string]Type{
		"MERGE":  TypeMerge,
		"SPLIT":  TypeSplit,
		"REDEEM": TypeRedeem,
	}
	for raw, want := range cases {
		typ, err := ParseType(raw, "")
		if err != nil {
			t.Fatalf("%s: err=%v", raw, err)
		}
		if typ != want {
			t.Fatalf("%s: typ=%s want %s", raw, typ, want)
		}
	}
}

func TestParseType_UnknownIsHardFailure(t *testing.T) {
	for _, raw := range []string{"REWARD", "CONVERSION", ""} {
		_, err := ParseType(raw, "")
		if err == nil {
			t.Fatalf("%q: expected error", raw)
		}
		var unknown *ErrUnknownTradeType
		if !errors.As(err, &unknown) {
			t.Fatalf("%q: err=%v want ErrUnknownTradeType", raw, err)
		}
	}
}

func TestParseType_TradeWithBadSide(t *testing.T) {
	if _, err := ParseType("TRADE", "HOLD"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDirectionFor(t *testing.T) {
	for _, typ := range []Type{TypeBuy, TypeSplit} {
		dir, err := DirectionFor(typ)
		if err != nil {
			t.Fatalf("%s: err=%v", typ, err)
		}
		if dir != DirectionInvestment {
			t.Fatalf("%s: dir=%s want INVESTMENT", typ, dir)
		}
	}
	for _, typ := range []Type{TypeSell, TypeMerge, TypeRedeem} {
		dir, err := DirectionFor(typ)
		if err != nil {
			t.Fatalf("%s: err=%v", typ, err)
		}
		if dir != DirectionDivestment {
			t.Fatalf("%s: dir=%s want DIVESTMENT", typ, dir)
		}
	}
	if _, err := DirectionFor(Type("AIRDROP")); err == nil {
		t.Fatalf("expected error")
	}
}
