package reconcile

import (
	"invest-ledger/internal/domain"
)

// FieldDivergence is a mismatch between a stored holding field and the value
// replay produced. Decimal values are compared exactly; there is no
// tolerance, because both paths use the same fixed-point arithmetic.
type FieldDivergence struct {
	Key      domain.HoldingKey
	Field    string
	Stored   string
	Replayed string
}

// DivergenceReport is the outcome of verifying one account. Divergent counts
// keys that are missing, unexpected, or differ in any cost-basis field.
// Market-price fields are written by an external collaborator on its own
// schedule and are not compared.
type DivergenceReport struct {
	AccountID   string
	Checked     int
	Matched     int
	Divergent   int
	Divergences []FieldDivergence
}

// Clean reports whether stored state matched replay everywhere.
func (r *DivergenceReport) Clean() bool {
	return r.Divergent == 0
}

// CompareHoldingSets diffs stored holdings against a replayed set.
func CompareHoldingSets(accountID string, stored, replayed []*domain.Holding) *DivergenceReport {
	report := &DivergenceReport{AccountID: accountID}

	storedByKey := make(map[domain.HoldingKey]*domain.Holding, len(stored))
	for _, h := range stored {
		storedByKey[h.Key()] = h
	}
	replayedByKey := make(map[domain.HoldingKey]*domain.Holding, len(replayed))
	for _, h := range replayed {
		replayedByKey[h.Key()] = h
	}

	for _, want := range replayed {
		report.Checked++
		got, ok := storedByKey[want.Key()]
		if !ok {
			report.Divergent++
			report.Divergences = append(report.Divergences, FieldDivergence{
				Key:      want.Key(),
				Field:    "presence",
				Stored:   "absent",
				Replayed: "present",
			})
			continue
		}
		divergences := compareHoldings(got, want)
		if len(divergences) == 0 {
			report.Matched++
		} else {
			report.Divergent++
			report.Divergences = append(report.Divergences, divergences...)
		}
	}

	for _, got := range stored {
		if _, ok := replayedByKey[got.Key()]; !ok {
			report.Checked++
			report.Divergent++
			report.Divergences = append(report.Divergences, FieldDivergence{
				Key:      got.Key(),
				Field:    "presence",
				Stored:   "present",
				Replayed: "absent",
			})
		}
	}

	return report
}

// compareHoldings diffs the cost-basis fields of one key.
func compareHoldings(stored, replayed *domain.Holding) []FieldDivergence {
	var divergences []FieldDivergence
	key := stored.Key()

	if !stored.Quantity.Equal(replayed.Quantity) {
		divergences = append(divergences, FieldDivergence{
			Key: key, Field: "quantity",
			Stored: stored.Quantity.String(), Replayed: replayed.Quantity.String(),
		})
	}
	if !stored.AverageCost.Equal(replayed.AverageCost) {
		divergences = append(divergences, FieldDivergence{
			Key: key, Field: "average_cost",
			Stored: stored.AverageCost.String(), Replayed: replayed.AverageCost.String(),
		})
	}
	if !stored.TotalCost.Equal(replayed.TotalCost) {
		divergences = append(divergences, FieldDivergence{
			Key: key, Field: "total_cost",
			Stored: stored.TotalCost.String(), Replayed: replayed.TotalCost.String(),
		})
	}
	if stored.Currency != replayed.Currency {
		divergences = append(divergences, FieldDivergence{
			Key: key, Field: "currency",
			Stored: stored.Currency, Replayed: replayed.Currency,
		})
	}

	return divergences
}
