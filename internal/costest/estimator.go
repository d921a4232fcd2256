// internal/costest/estimator.go
package costest

import (
	"math"
	"sort"

	"edgegate/pkg/catalog"
)

// Usage is observed (or projected) unit volume per billing kind over one
// monthly window, e.g. {"api_call": 12000, "contact_sync": 300}.
type Usage map[string]int64

// Recommendation values carried in estimate responses.
const (
	RecommendSwitch = "switch"
	RecommendStay   = "stay"
)

// Estimate compares a current strategy's projected monthly cost against a
// candidate's. It is derived on demand and never persisted.
type Estimate struct {
	CurrentMonthlyCost  float64 `json:"current_monthly_cost"`
	ProposedMonthlyCost float64 `json:"proposed_monthly_cost"`
	Savings             float64 `json:"savings"`
	SavingsPct          float64 `json:"savings_pct"`
	Recommendation      string  `json:"recommendation"`
}

// Project computes the monthly cost of usage under a fee schedule. The
// included quota is consumed across billable kinds in ascending kind-name
// order so repeated calls with the same inputs always price identically.
// Kinds the schedule carries no rate for are not billable under it.
func Project(fees catalog.FeeSchedule, usage Usage) float64 {
	cost := fees.MonthlyBaseFee
	remaining := fees.IncludedQuota

	kinds := make([]string, 0, len(fees.PerUnitRates))
	for kind := range fees.PerUnitRates {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		units := usage[kind]
		if units <= 0 {
			continue
		}
		if remaining > 0 {
			covered := units
			if covered > remaining {
				covered = remaining
			}
			remaining -= covered
			units -= covered
		}
		cost += float64(units) * fees.PerUnitRates[kind]
	}
	return cost
}

// Compare projects both schedules over the same usage and recommends a
// switch only when the saving exceeds thresholdPct. Identical schedules
// always come out at zero savings and "stay".
func Compare(current, candidate catalog.FeeSchedule, usage Usage, thresholdPct float64) Estimate {
	cur := Project(current, usage)
	prop := Project(candidate, usage)
	savings := cur - prop

	var pct float64
	if cur > 0 {
		pct = round2(savings / cur * 100)
	}

	rec := RecommendStay
	if pct > thresholdPct {
		rec = RecommendSwitch
	}
	return Estimate{
		CurrentMonthlyCost:  round2(cur),
		ProposedMonthlyCost: round2(prop),
		Savings:             round2(savings),
		SavingsPct:          pct,
		Recommendation:      rec,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
