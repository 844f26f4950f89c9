// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package accounting

import (
	"github.com/podiumhq/podium/console"
)

// PlanLimits are the monthly quota parameters of a plan.
type PlanLimits struct {
	Requests     int64 `json:"requests"`
	Leaderboards int64 `json:"leaderboards"`
	APIKeys      int64 `json:"apiKeys"`
}

var planLimits = map[console.PlanType]PlanLimits{
	console.PlanFree:       {Requests: 10_000, Leaderboards: 5, APIKeys: 2},
	console.PlanPro:        {Requests: 1_000_000, Leaderboards: 50, APIKeys: 10},
	console.PlanEnterprise: {Requests: 10_000_000, Leaderboards: 9_999, APIKeys: 9_999},
}

// LimitsFor returns the monthly limits of a plan; unknown plans get the free
// tier.
func LimitsFor(plan console.PlanType) PlanLimits {
	if limits, ok := planLimits[plan]; ok {
		return limits
	}
	return planLimits[console.PlanFree]
}

// LimitStatus compares a current value against its plan limit.
type LimitStatus struct {
	Current     int64 `json:"current"`
	Limit       int64 `json:"limit"`
	WithinLimit bool  `json:"withinLimit"`
}

// UsageCheck is the admission-control view of a subscription: each dimension
// against its limit plus the conjunction.
type UsageCheck struct {
	Requests     LimitStatus `json:"requests"`
	Leaderboards LimitStatus `json:"leaderboards"`
	APIKeys      LimitStatus `json:"apiKeys"`
	WithinLimits bool        `json:"withinLimits"`
}
