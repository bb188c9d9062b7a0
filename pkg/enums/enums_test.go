package enums

import "testing"

func TestRideStatusTerminal(t *testing.T) {
	cases := map[RideStatus]bool{
		RideStatusAvailable: false,
		RideStatusAccepted:  false,
		RideStatusCompleted: true,
		RideStatusCancelled: true,
	}
	for status, terminal := range cases {
		if status.IsTerminal() != terminal {
			t.Fatalf("status %s expected terminal=%v", status, terminal)
		}
	}
}

func TestParseRideStatus(t *testing.T) {
	if _, err := ParseRideStatus("accepted"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseRideStatus("deleted"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestUsageKindColumn(t *testing.T) {
	if col, ok := UsageAccepted.Column(); !ok || col != "accepted_count" {
		t.Fatalf("unexpected column %q", col)
	}
	if col, ok := UsagePublished.Column(); !ok || col != "published_count" {
		t.Fatalf("unexpected column %q", col)
	}
	if _, ok := UsageKind("refunded").Column(); ok {
		t.Fatal("unknown usage kind must not map to a column")
	}
}

func TestFromStripeStatus(t *testing.T) {
	cases := map[string]SubscriptionStatus{
		"active":             SubscriptionStatusActive,
		"trialing":           SubscriptionStatusActive,
		"past_due":           SubscriptionStatusPastDue,
		"unpaid":             SubscriptionStatusPastDue,
		"canceled":           SubscriptionStatusCancelled,
		"incomplete_expired": SubscriptionStatusExpired,
		"incomplete":         SubscriptionStatusFree,
	}
	for raw, want := range cases {
		if got := FromStripeStatus(raw); got != want {
			t.Fatalf("stripe status %q expected %s got %s", raw, want, got)
		}
	}
}

func TestParseChatMessageType(t *testing.T) {
	if _, err := ParseChatMessageType("text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseChatMessageType("voice"); err == nil {
		t.Fatal("expected error for unknown message type")
	}
}

func TestPlanStatusAcceptsCheckout(t *testing.T) {
	if !PlanStatusActive.AcceptsCheckout() || !PlanStatusHidden.AcceptsCheckout() {
		t.Fatal("active and hidden plans must accept checkout")
	}
	if PlanStatusDeprecated.AcceptsCheckout() {
		t.Fatal("deprecated plans must not accept checkout")
	}
	if _, err := ParsePlanStatus("retired"); err == nil {
		t.Fatal("expected error for unknown plan status")
	}
	if !BillingIntervalYear.IsValid() || BillingInterval("week").IsValid() {
		t.Fatal("unexpected billing interval validity")
	}
}
