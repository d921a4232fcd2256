// internal/costest/estimator_test.go
package costest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"edgegate/pkg/catalog"
)

func TestProject(t *testing.T) {
	fees := catalog.FeeSchedule{
		MonthlyBaseFee: 50,
		PerUnitRates:   map[string]float64{"api_call": 0.01, "contact_sync": 0.05},
		IncludedQuota:  1000,
	}

	cases := []struct {
		name  string
		fees  catalog.FeeSchedule
		usage Usage
		want  float64
	}{
		{"no usage", fees, Usage{}, 50},
		{"inside included quota", fees, Usage{"api_call": 800}, 50},
		{"past included quota", fees, Usage{"api_call": 3000}, 50 + 2000*0.01},
		{"quota consumed in kind order", fees, Usage{"api_call": 1000, "contact_sync": 500}, 50 + 500*0.05},
		{"unpriced kinds are free", fees, Usage{"webhook": 100000}, 50},
		{"zero schedule", catalog.FeeSchedule{}, Usage{"api_call": 3000}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Project(tc.fees, tc.usage), 0.001)
		})
	}
}

func TestCompareIdenticalSchedulesAlwaysStay(t *testing.T) {
	fees := catalog.FeeSchedule{
		MonthlyBaseFee: 99,
		PerUnitRates:   map[string]float64{"api_call": 0.002},
		IncludedQuota:  50000,
	}
	est := Compare(fees, fees, Usage{"api_call": 120000}, 10)
	assert.Equal(t, 0.0, est.SavingsPct)
	assert.Equal(t, 0.0, est.Savings)
	assert.Equal(t, RecommendStay, est.Recommendation)
}

func TestCompareRecommendsSwitchPastThreshold(t *testing.T) {
	current := catalog.FeeSchedule{MonthlyBaseFee: 200}
	candidate := catalog.FeeSchedule{MonthlyBaseFee: 150}

	est := Compare(current, candidate, Usage{}, 10)
	assert.Equal(t, 200.0, est.CurrentMonthlyCost)
	assert.Equal(t, 150.0, est.ProposedMonthlyCost)
	assert.Equal(t, 50.0, est.Savings)
	assert.Equal(t, 25.0, est.SavingsPct)
	assert.Equal(t, RecommendSwitch, est.Recommendation)
}

func TestCompareStaysUnderThreshold(t *testing.T) {
	current := catalog.FeeSchedule{MonthlyBaseFee: 100}
	candidate := catalog.FeeSchedule{MonthlyBaseFee: 95}

	est := Compare(current, candidate, Usage{}, 10)
	assert.Equal(t, 5.0, est.SavingsPct)
	assert.Equal(t, RecommendStay, est.Recommendation)
}

func TestCompareThresholdIsStrict(t *testing.T) {
	current := catalog.FeeSchedule{MonthlyBaseFee: 100}
	candidate := catalog.FeeSchedule{MonthlyBaseFee: 90}

	est := Compare(current, candidate, Usage{}, 10)
	assert.Equal(t, 10.0, est.SavingsPct)
	assert.Equal(t, RecommendStay, est.Recommendation, "exactly at threshold is not an exceedance")
}

func TestCompareCostlierCandidate(t *testing.T) {
	current := catalog.FeeSchedule{MonthlyBaseFee: 100}
	candidate := catalog.FeeSchedule{MonthlyBaseFee: 180}

	est := Compare(current, candidate, Usage{}, 10)
	assert.Equal(t, -80.0, est.Savings)
	assert.Equal(t, -80.0, est.SavingsPct)
	assert.Equal(t, RecommendStay, est.Recommendation)
}

func TestCompareZeroCostCurrent(t *testing.T) {
	current := catalog.FeeSchedule{}
	candidate := catalog.FeeSchedule{MonthlyBaseFee: 30}

	est := Compare(current, candidate, Usage{}, 10)
	assert.Equal(t, 0.0, est.SavingsPct, "no percentage of a zero bill")
	assert.Equal(t, RecommendStay, est.Recommendation)
}

func TestCompareIsDeterministic(t *testing.T) {
	current := catalog.FeeSchedule{
		MonthlyBaseFee: 10,
		PerUnitRates:   map[string]float64{"api_call": 0.01, "contact_sync": 0.03, "export": 0.07},
		IncludedQuota:  500,
	}
	candidate := catalog.FeeSchedule{
		MonthlyBaseFee: 60,
		PerUnitRates:   map[string]float64{"api_call": 0.001},
		IncludedQuota:  10000,
	}
	usage := Usage{"api_call": 9000, "contact_sync": 400, "export": 50}

	first := Compare(current, candidate, usage, 10)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Compare(current, candidate, usage, 10))
	}
}
