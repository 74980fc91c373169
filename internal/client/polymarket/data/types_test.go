package data

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecimal_TolerantUnmarshal(t *testing.T) {
	var p Position
	raw := []byte(`{"conditionId":"0xa","size":"100.5","curPrice":0.61,"currentValue":null}`)
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("err=%v", err)
	}
	if !p.Size.Decimal.Equal(decimal.NewFromFloat(100.5)) {
		t.Fatalf("size=%s want 100.5", p.Size.Decimal)
	}
	if !p.CurPrice.Decimal.Equal(decimal.NewFromFloat(0.61)) {
		t.Fatalf("curPrice=%s want 0.61", p.CurPrice.Decimal)
	}
	if !p.CurrentValue.Decimal.IsZero() {
		t.Fatalf("currentValue=%s want 0", p.CurrentValue.Decimal)
	}
}

func TestDecimal_RejectsGarbage(t *testing.T) {
	var d Decimal
	if err := json.Unmarshal([]byte(`"not-a-number"`), &d); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLatestTimestamp(t *testing.T) {
	if got := LatestTimestamp(nil); got != 0 {
		t.Fatalf("got=%d want 0", got)
	}
	acts := []Activity{{Timestamp: 10}, {Timestamp: 30}, {Timestamp: 20}}
	if got := LatestTimestamp(acts); got != 30 {
		t.Fatalf("got=%d want 30", got)
	}
}
