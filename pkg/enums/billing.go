package enums

import "fmt"

// BillingInterval mirrors the recurring interval of a plan's Stripe price.
type BillingInterval string

const (
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)

// ParseBillingInterval converts raw input into a BillingInterval.
func ParseBillingInterval(value string) (BillingInterval, error) {
	switch BillingInterval(value) {
	case BillingIntervalMonth, BillingIntervalYear:
		return BillingInterval(value), nil
	}
	return "", fmt.Errorf("invalid billing interval %q", value)
}

func (b BillingInterval) String() string { return string(b) }

// IsValid reports whether the value is a known BillingInterval.
func (b BillingInterval) IsValid() bool {
	_, err := ParseBillingInterval(string(b))
	return err == nil
}

// PlanStatus controls whether a billing plan is shown in the catalogue and sold.
// Deprecated plans keep serving existing subscribers; hidden plans are only
// reachable by id (grandfathered or partner pricing).
type PlanStatus string

const (
	PlanStatusActive     PlanStatus = "active"
	PlanStatusDeprecated PlanStatus = "deprecated"
	PlanStatusHidden     PlanStatus = "hidden"
)

// ParsePlanStatus converts raw input into a PlanStatus.
func ParsePlanStatus(value string) (PlanStatus, error) {
	switch PlanStatus(value) {
	case PlanStatusActive, PlanStatusDeprecated, PlanStatusHidden:
		return PlanStatus(value), nil
	}
	return "", fmt.Errorf("invalid plan status %q", value)
}

func (p PlanStatus) String() string { return string(p) }

// IsValid reports whether the value is a known PlanStatus.
func (p PlanStatus) IsValid() bool {
	_, err := ParsePlanStatus(string(p))
	return err == nil
}

// AcceptsCheckout reports whether new checkout sessions may be opened for the plan.
func (p PlanStatus) AcceptsCheckout() bool {
	return p == PlanStatusActive || p == PlanStatusHidden
}
