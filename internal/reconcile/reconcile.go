package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"smartmoney/internal/models"
)

// Key identifies one position within a wallet.
type Key struct {
	ConditionID string
	Outcome     string
}

// Remote is one open position as reported by the upstream snapshot.
type Remote struct {
	Key
	Title           string
	Slug            string
	EventSlug       string
	OppositeOutcome string
	NegativeRisk    bool
	Shares          decimal.Decimal
	TotalBought     decimal.Decimal
	AvgEntryPrice   decimal.Decimal
	CurrentPrice    decimal.Decimal
	CurrentValue    decimal.Decimal
	AmountSpent     decimal.Decimal
	RealizedPnl     decimal.Decimal
	EndDate         *time.Time
}

// Stored is the persisted view of the same wallet, reduced to the fields the
// diff needs. Positions persist a current value rather than a mark price, so
// the field-level diff compares values.
type Stored struct {
	Key
	Status       models.PositionStatus
	TradeStatus  models.TradeStatus
	Shares       decimal.Decimal
	CurrentValue decimal.Decimal
}

// Closure is a stored position that vanished from the snapshot, with the
// terminal status it should move to.
type Closure struct {
	Key
	Status models.PositionStatus // CLOSED or CLOSED_NEED_DATA
}

// Changes partitions the diff of the two snapshots into four disjoint sets.
// A key present in both snapshots with identical shares and price lands in
// none of them, which is what makes back-to-back passes idempotent.
type Changes struct {
	Create []Remote
	Update []Remote
	Close  []Closure
	Reopen []Remote
}

// Empty reports whether the diff found nothing to do.
func (c Changes) Empty() bool {
	return len(c.Create) == 0 && len(c.Update) == 0 && len(c.Close) == 0 && len(c.Reopen) == 0
}

// PartitionError means a key was classified into more than one set. The
// single-pass classifier cannot produce this; seeing it is a defect, not a
// recoverable condition.
type PartitionError struct {
	Key  Key
	Sets [2]string
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("position %s/%q classified into both %s and %s",
		e.Key.ConditionID, e.Key.Outcome, e.Sets[0], e.Sets[1])
}

// Diff classifies every key of the union of the two snapshots:
//
//   - in remote only                      ⇒ Create
//   - in stored as OPEN, not in remote    ⇒ Close (CLOSED when resolved
//     reports resolution data is available, CLOSED_NEED_DATA otherwise,
//     queuing a follow-up fetch)
//   - in stored as closed, in remote      ⇒ Reopen (reopen wins even while a
//     CLOSED_NEED_DATA follow-up is still pending)
//   - in both as OPEN, shares or value changed ⇒ Update
//
// Keys already closed and still absent from the snapshot stay untouched.
// Output order is deterministic regardless of input order.
func Diff(remote []Remote, stored []Stored, resolved func(Key) bool) (Changes, error) {
	api := make(map[Key]Remote, len(remote))
	for _, r := range remote {
		api[r.Key] = r
	}
	db := make(map[Key]Stored, len(stored))
	for _, s := range stored {
		db[s.Key] = s
	}

	union := make([]Key, 0, len(api)+len(db))
	for k := range api {
		union = append(union, k)
	}
	for k := range db {
		if _, ok := api[k]; !ok {
			union = append(union, k)
		}
	}
	sort.Slice(union, func(i, j int) bool {
		if union[i].ConditionID != union[j].ConditionID {
			return union[i].ConditionID < union[j].ConditionID
		}
		return union[i].Outcome < union[j].Outcome
	})

	var changes Changes
	assigned := make(map[Key]string, len(union))
	assign := func(k Key, set string) error {
		if prev, ok := assigned[k]; ok {
			return &PartitionError{Key: k, Sets: [2]string{prev, set}}
		}
		assigned[k] = set
		return nil
	}

	for _, k := range union {
		r, inAPI := api[k]
		s, inDB := db[k]
		switch {
		case inAPI && !inDB:
			if err := assign(k, "create"); err != nil {
				return Changes{}, err
			}
			changes.Create = append(changes.Create, r)
		case !inAPI && inDB:
			if s.Status != models.PositionOpen {
				continue
			}
			status := models.PositionClosedNeedData
			if resolved != nil && resolved(k) {
				status = models.PositionClosed
			}
			if err := assign(k, "close"); err != nil {
				return Changes{}, err
			}
			changes.Close = append(changes.Close, Closure{Key: k, Status: status})
		default:
			if s.Status != models.PositionOpen {
				if err := assign(k, "reopen"); err != nil {
					return Changes{}, err
				}
				changes.Reopen = append(changes.Reopen, r)
				continue
			}
			if !s.Shares.Equal(r.Shares) || !s.CurrentValue.Equal(r.CurrentValue) {
				if err := assign(k, "update"); err != nil {
					return Changes{}, err
				}
				changes.Update = append(changes.Update, r)
			}
		}
	}
	return changes, nil
}
