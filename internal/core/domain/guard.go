package domain

import (
	"github.com/shopspring/decimal"
)

// GuardCondition is the breach detected for a managed account.
type GuardCondition string

const (
	ConditionNone          GuardCondition = ""
	ConditionLowBalance    GuardCondition = "low_balance"
	ConditionSpendExceeded GuardCondition = "spend_exceeded"
)

// GuardThresholds holds the budget guard limits.
type GuardThresholds struct {
	LowBalance   decimal.Decimal
	SafetyMargin decimal.Decimal
}

// IsLowBalance returns true when funded is strictly below the threshold.
func (g GuardThresholds) IsLowBalance(funded decimal.Decimal) bool {
	return funded.LessThan(g.LowBalance)
}

// IsOverspent returns true when lifetime spend exceeds funded + margin.
func (g GuardThresholds) IsOverspent(funded, lifetimeSpend decimal.Decimal) bool {
	return lifetimeSpend.GreaterThan(funded.Add(g.SafetyMargin))
}

// GuardSummary is the outcome of one budget guard tick.
type GuardSummary struct {
	RunID    string `json:"run_id"`
	Checked  int    `json:"checked"`
	Paused   int    `json:"paused"`
	Notified int    `json:"notified"`
	Errors   int    `json:"errors"`
}
