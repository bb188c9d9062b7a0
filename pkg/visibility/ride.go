package visibility

import (
	"strings"

	"github.com/google/uuid"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
)

// Redacted replaces sensitive ride fields for viewers without a relationship to the ride.
const Redacted = "***"

// CanSeeFullRide reports whether viewerID may see client details and full addresses.
// uuid.Nil stands for an anonymous viewer.
func CanSeeFullRide(ride *models.Ride, viewerID uuid.UUID) bool {
	if ride == nil {
		return false
	}
	if ride.Status != enums.RideStatusAvailable {
		return true
	}
	return ride.IsParticipant(viewerID)
}

// SanitizeRide returns the view of ride that viewerID is allowed to see. The input is
// never mutated and sanitizing an already sanitized ride yields the same value.
func SanitizeRide(ride models.Ride, viewerID uuid.UUID) models.Ride {
	out := ride
	out.Documents = append([]models.RideDocument(nil), ride.Documents...)

	if !CanSeeFullRide(&ride, viewerID) {
		out.ClientName = Redacted
		out.ClientPhone = Redacted
		out.Pickup = RedactAddress(ride.Pickup)
		out.Destination = RedactAddress(ride.Destination)
		if out.DocumentsVisibility == enums.DocumentsHidden {
			out.Documents = []models.RideDocument{}
		}
	}
	return out
}

// SanitizeRides applies SanitizeRide to each ride.
func SanitizeRides(rides []models.Ride, viewerID uuid.UUID) []models.Ride {
	out := make([]models.Ride, 0, len(rides))
	for _, ride := range rides {
		out = append(out, SanitizeRide(ride, viewerID))
	}
	return out
}

// RedactAddress keeps the first word (usually the street number or city) and masks the rest.
// Single-word and empty addresses are fully masked.
func RedactAddress(address string) string {
	fields := strings.Fields(address)
	if len(fields) < 2 {
		return Redacted
	}
	return fields[0] + " " + Redacted
}
