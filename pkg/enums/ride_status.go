package enums

import "fmt"

// RideStatus tracks where a ride sits in its lifecycle.
type RideStatus string

const (
	RideStatusAvailable RideStatus = "available"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

var validRideStatuses = []RideStatus{
	RideStatusAvailable,
	RideStatusAccepted,
	RideStatusCompleted,
	RideStatusCancelled,
}

// String implements fmt.Stringer.
func (s RideStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s RideStatus) IsValid() bool {
	for _, candidate := range validRideStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// ParseRideStatus converts raw input into a RideStatus.
func ParseRideStatus(value string) (RideStatus, error) {
	for _, candidate := range validRideStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ride status %q", value)
}
