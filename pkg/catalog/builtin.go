// pkg/catalog/builtin.go
package catalog

import (
	"edgegate/pkg/credentials"
)

// builtins is the provider set the platform ships with. Fee figures mirror
// the published list prices the billing team maintains; overlay files win
// when they drift.
func builtins() []Provider {
	return []Provider{
		{
			ID:           "hubspot",
			DisplayName:  "HubSpot",
			AuthorizeURL: "https://app.hubspot.com/oauth/authorize",
			Scopes:       []string{"crm.objects.contacts.read", "crm.objects.contacts.write", "oauth"},
			Capabilities: []string{"crm.contacts", "crm.deals"},
			Fees: map[credentials.Strategy]FeeSchedule{
				credentials.StrategyBYOK:            {MonthlyBaseFee: 0, PerUnitRates: map[string]float64{"api_call": 0}, IncludedQuota: 0},
				credentials.StrategyPlatformManaged: {MonthlyBaseFee: 49, PerUnitRates: map[string]float64{"api_call": 0.001}, IncludedQuota: 100000},
			},
		},
		{
			ID:           "openai",
			DisplayName:  "OpenAI",
			AuthorizeURL: "https://platform.openai.com/oauth/authorize",
			Scopes:       []string{"api.read", "api.write"},
			Capabilities: []string{"llm.chat", "llm.embeddings"},
			Fees: map[credentials.Strategy]FeeSchedule{
				credentials.StrategyBYOK:            {MonthlyBaseFee: 0, PerUnitRates: map[string]float64{"token_1k": 0.002}, IncludedQuota: 0},
				credentials.StrategyPlatformManaged: {MonthlyBaseFee: 29, PerUnitRates: map[string]float64{"token_1k": 0.0025}, IncludedQuota: 500000},
			},
		},
		{
			ID:           "anthropic",
			DisplayName:  "Anthropic",
			AuthorizeURL: "https://console.anthropic.com/oauth/authorize",
			Scopes:       []string{"messages.read", "messages.write"},
			Capabilities: []string{"llm.chat"},
			Fees: map[credentials.Strategy]FeeSchedule{
				credentials.StrategyBYOK:            {MonthlyBaseFee: 0, PerUnitRates: map[string]float64{"token_1k": 0.003}, IncludedQuota: 0},
				credentials.StrategyPlatformManaged: {MonthlyBaseFee: 39, PerUnitRates: map[string]float64{"token_1k": 0.0035}, IncludedQuota: 400000},
			},
		},
		{
			ID:           "stripe",
			DisplayName:  "Stripe",
			AuthorizeURL: "https://connect.stripe.com/oauth/authorize",
			Scopes:       []string{"read_write"},
			Capabilities: []string{"payments.charge", "payments.refund"},
			Fees: map[credentials.Strategy]FeeSchedule{
				credentials.StrategyBYOK:            {MonthlyBaseFee: 0, PerUnitRates: map[string]float64{"payment": 0}, IncludedQuota: 0},
				credentials.StrategyPlatformManaged: {MonthlyBaseFee: 0, PerUnitRates: map[string]float64{"payment": 0.003}, IncludedQuota: 0},
			},
		},
		{
			ID:           "slack",
			DisplayName:  "Slack",
			AuthorizeURL: "https://slack.com/oauth/v2/authorize",
			Scopes:       []string{"chat:write", "channels:read"},
			Capabilities: []string{"messaging.post"},
			Fees: map[credentials.Strategy]FeeSchedule{
				credentials.StrategyBYOK:            {MonthlyBaseFee: 0, PerUnitRates: map[string]float64{"message": 0}, IncludedQuota: 0},
				credentials.StrategyPlatformManaged: {MonthlyBaseFee: 9, PerUnitRates: map[string]float64{"message": 0.0001}, IncludedQuota: 50000},
			},
		},
	}
}
