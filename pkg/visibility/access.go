package visibility

import (
	"github.com/google/uuid"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
)

// ChatAccess returns the caller's role in the ride chat. Chat only opens once the ride
// has left the available state, and only its two parties may use it.
func ChatAccess(ride *models.Ride, userID uuid.UUID) (enums.ParticipantRole, error) {
	if ride == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
	}
	if ride.Status == enums.RideStatusAvailable {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "chat is only available once the ride is accepted")
	}
	return participantRole(ride, userID)
}

// DocumentAccess returns the caller's role for a ride's documents. The publisher is always
// allowed; the taker only once documents have been made visible by acceptance.
func DocumentAccess(ride *models.Ride, userID uuid.UUID) (enums.ParticipantRole, error) {
	if ride == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
	}
	if userID != uuid.Nil && ride.PublishedBy == userID {
		return enums.ParticipantPublisher, nil
	}
	if ride.AcceptedBy == nil || *ride.AcceptedBy != userID || userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "you are not a party to this ride")
	}
	if ride.DocumentsVisibility != enums.DocumentsVisible {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "documents are not visible yet")
	}
	return enums.ParticipantTaker, nil
}

// DocumentManage allows only the publisher to delete documents.
func DocumentManage(ride *models.Ride, userID uuid.UUID) error {
	role, err := DocumentAccess(ride, userID)
	if err != nil {
		return err
	}
	if role != enums.ParticipantPublisher {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the publisher can delete documents")
	}
	return nil
}

func participantRole(ride *models.Ride, userID uuid.UUID) (enums.ParticipantRole, error) {
	switch {
	case userID == uuid.Nil:
	case ride.PublishedBy == userID:
		return enums.ParticipantPublisher, nil
	case ride.AcceptedBy != nil && *ride.AcceptedBy == userID:
		return enums.ParticipantTaker, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "you are not a party to this ride")
}
