package rides

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/validation"
)

const dateLayout = "2006-01-02"

// RideDraft is the publisher's input for a new ride.
type RideDraft struct {
	DepartureDepartment string           `json:"departure_department" validate:"required,department"`
	ArrivalDepartment   string           `json:"arrival_department" validate:"required,department"`
	DepartureCity       *string          `json:"departure_city,omitempty" validate:"omitempty,max=120"`
	ArrivalCity         *string          `json:"arrival_city,omitempty" validate:"omitempty,max=120"`
	Zone                string           `json:"zone" validate:"required,max=60"`
	Distance            string           `json:"distance" validate:"required,max=60"`
	CourseType          enums.CourseType `json:"course_type" validate:"required,oneof=normal medical"`
	MedicalType         *string          `json:"medical_type,omitempty" validate:"omitempty,max=60"`
	Date                string           `json:"date" validate:"required,datetime=2006-01-02"`
	DepartureTime       string           `json:"departure_time" validate:"required,datetime=15:04"`
	ArrivalTime         *string          `json:"arrival_time,omitempty" validate:"omitempty,datetime=15:04"`
	ClientName          string           `json:"client_name" validate:"required,max=120"`
	ClientPhone         string           `json:"client_phone" validate:"required,phone"`
	Pickup              string           `json:"pickup" validate:"required,max=255"`
	Destination         string           `json:"destination" validate:"required,max=255"`
	Notes               *string          `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Stretcher           bool             `json:"stretcher"`
}

// Validate checks field constraints and the medical subtype rule: a subtype is
// present exactly when the course type is medical.
func (d RideDraft) Validate() error {
	d = d.normalized()
	if err := validation.Struct(d); err != nil {
		return err
	}
	hasSubtype := d.MedicalType != nil
	switch {
	case d.CourseType == enums.CourseTypeMedical && !hasSubtype:
		return pkgerrors.New(pkgerrors.CodeValidation, "medical_type is required for medical rides").
			WithDetails(map[string]string{"medical_type": "is required"})
	case d.CourseType != enums.CourseTypeMedical && hasSubtype:
		return pkgerrors.New(pkgerrors.CodeValidation, "medical_type is only allowed for medical rides").
			WithDetails(map[string]string{"medical_type": "must be empty"})
	}
	return nil
}

// ToModel builds a new available ride owned by publisherID. Validate must have passed.
func (d RideDraft) ToModel(publisherID uuid.UUID) (*models.Ride, error) {
	d = d.normalized()
	day, err := time.ParseInLocation(dateLayout, d.Date, time.UTC)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date")
	}
	return &models.Ride{
		PublishedBy:         publisherID,
		DepartureDepartment: d.DepartureDepartment,
		ArrivalDepartment:   d.ArrivalDepartment,
		DepartureCity:       d.DepartureCity,
		ArrivalCity:         d.ArrivalCity,
		Zone:                d.Zone,
		Distance:            d.Distance,
		CourseType:          d.CourseType,
		MedicalType:         d.MedicalType,
		ScheduledDate:       day,
		DepartureTime:       d.DepartureTime,
		ArrivalTime:         d.ArrivalTime,
		ClientName:          d.ClientName,
		ClientPhone:         d.ClientPhone,
		Pickup:              d.Pickup,
		Destination:         d.Destination,
		Notes:               d.Notes,
		Stretcher:           d.Stretcher,
		Status:              enums.RideStatusAvailable,
		DocumentsVisibility: enums.DocumentsHidden,
	}, nil
}

func (d RideDraft) normalized() RideDraft {
	d.DepartureDepartment = strings.ToUpper(strings.TrimSpace(d.DepartureDepartment))
	d.ArrivalDepartment = strings.ToUpper(strings.TrimSpace(d.ArrivalDepartment))
	d.DepartureCity = trimOptional(d.DepartureCity)
	d.ArrivalCity = trimOptional(d.ArrivalCity)
	d.Zone = strings.TrimSpace(d.Zone)
	d.Distance = strings.TrimSpace(d.Distance)
	d.CourseType = enums.CourseType(strings.ToLower(strings.TrimSpace(string(d.CourseType))))
	d.MedicalType = trimOptional(d.MedicalType)
	d.Date = strings.TrimSpace(d.Date)
	d.DepartureTime = strings.TrimSpace(d.DepartureTime)
	d.ArrivalTime = trimOptional(d.ArrivalTime)
	d.ClientName = strings.TrimSpace(d.ClientName)
	d.ClientPhone = strings.TrimSpace(d.ClientPhone)
	d.Pickup = strings.TrimSpace(d.Pickup)
	d.Destination = strings.TrimSpace(d.Destination)
	d.Notes = trimOptional(d.Notes)
	return d
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
