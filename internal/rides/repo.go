package rides

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	"github.com/courseshare/courseshare-backend/pkg/pagination"
)

// Repository is the ride store. It applies no policy; the conditional updates
// report whether their precondition still held when the statement ran.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, ride *models.Ride) error
	CreateDocuments(ctx context.Context, docs []models.RideDocument) error
	FindByID(ctx context.Context, id int64) (*models.Ride, error)
	Accept(ctx context.Context, id int64, takerID uuid.UUID, at time.Time) (bool, error)
	Close(ctx context.Context, id int64, target enums.RideStatus, at time.Time) (bool, error)
	DeleteDocuments(ctx context.Context, rideID int64) ([]models.RideDocument, error)
	DeleteAvailable(ctx context.Context, id int64, publisherID uuid.UUID) (bool, error)
	List(ctx context.Context, params listRidesParams) ([]models.Ride, error)
}

type listRidesParams struct {
	Status      *enums.RideStatus
	PublishedBy *uuid.UUID
	AcceptedBy  *uuid.UUID
	Department  string
	CourseType  enums.CourseType
	Date        *time.Time
	Limit       int
	Cursor      *pagination.Cursor
	CursorID    int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a rides repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, ride *models.Ride) error {
	return r.db.WithContext(ctx).Omit("Documents").Create(ride).Error
}

func (r *repository) CreateDocuments(ctx context.Context, docs []models.RideDocument) error {
	if len(docs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&docs).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Ride, error) {
	var ride models.Ride
	err := r.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&ride).Error
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

// Accept moves an available ride to accepted in a single conditional statement. It
// returns false when the ride was no longer available or belongs to takerID.
func (r *repository) Accept(ctx context.Context, id int64, takerID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Ride{}).
		Where("id = ? AND status = ? AND published_by <> ?", id, enums.RideStatusAvailable, takerID).
		Updates(map[string]any{
			"status":               enums.RideStatusAccepted,
			"accepted_by":          takerID,
			"accepted_at":          at,
			"documents_visibility": enums.DocumentsVisible,
			"updated_at":           at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Close moves a non-terminal ride to completed or cancelled. completed_at is only
// stamped for completed rides.
func (r *repository) Close(ctx context.Context, id int64, target enums.RideStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     target,
		"updated_at": at,
	}
	if target == enums.RideStatusCompleted {
		updates["completed_at"] = at
	}
	result := r.db.WithContext(ctx).
		Model(&models.Ride{}).
		Where("id = ? AND status IN ?", id, []enums.RideStatus{enums.RideStatusAvailable, enums.RideStatusAccepted}).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteDocuments removes a ride's document rows and returns what it removed. The
// ride row is locked first so an upload racing the delete is either seen here or
// finds the ride gone.
func (r *repository) DeleteDocuments(ctx context.Context, rideID int64) ([]models.RideDocument, error) {
	var ride models.Ride
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", rideID).
		First(&ride).Error
	if err != nil {
		return nil, err
	}

	var docs []models.RideDocument
	if err := r.db.WithContext(ctx).Where("ride_id = ?", rideID).Find(&docs).Error; err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Where("ride_id = ?", rideID).Delete(&models.RideDocument{}).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteAvailable removes the ride only while it is still available and owned by publisherID.
func (r *repository) DeleteAvailable(ctx context.Context, id int64, publisherID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND published_by = ? AND status = ?", id, publisherID, enums.RideStatusAvailable).
		Delete(&models.Ride{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// List returns up to params.Limit rides, newest first, strictly after the cursor.
func (r *repository) List(ctx context.Context, params listRidesParams) ([]models.Ride, error) {
	query := r.db.WithContext(ctx).Model(&models.Ride{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.PublishedBy != nil {
		query = query.Where("published_by = ?", *params.PublishedBy)
	}
	if params.AcceptedBy != nil {
		query = query.Where("accepted_by = ?", *params.AcceptedBy)
	}
	if params.Department != "" {
		query = query.Where("(departure_department = ? OR arrival_department = ?)", params.Department, params.Department)
	}
	if params.CourseType != "" {
		query = query.Where("course_type = ?", params.CourseType)
	}
	if params.Date != nil {
		day := time.Date(params.Date.Year(), params.Date.Month(), params.Date.Day(), 0, 0, 0, 0, time.UTC)
		query = query.Where("scheduled_date >= ? AND scheduled_date < ?", day, day.AddDate(0, 0, 1))
	}
	if params.Cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.CursorID)
	}

	var rides []models.Ride
	err := query.
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Order("created_at DESC, id DESC").
		Limit(params.Limit).
		Find(&rides).Error
	if err != nil {
		return nil, err
	}
	return rides, nil
}
