package documents

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
)

// Repository persists ride documents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, doc *models.RideDocument) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RideDocument, error)
	ListByRide(ctx context.Context, rideID int64) ([]models.RideDocument, error)
	Totals(ctx context.Context, rideID int64) (int, int64, error)
	LockRide(ctx context.Context, rideID int64) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a documents repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, doc *models.RideDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RideDocument, error) {
	var doc models.RideDocument
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *repository) ListByRide(ctx context.Context, rideID int64) ([]models.RideDocument, error) {
	var docs []models.RideDocument
	err := r.db.WithContext(ctx).
		Where("ride_id = ?", rideID).
		Order("created_at ASC, id ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Totals returns how many documents a ride holds and their combined size.
func (r *repository) Totals(ctx context.Context, rideID int64) (int, int64, error) {
	var row struct {
		Count int64
		Bytes int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.RideDocument{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS bytes").
		Where("ride_id = ?", rideID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return int(row.Count), row.Bytes, nil
}

// LockRide takes a row lock on the ride so concurrent uploads to it run their
// limit checks one at a time. Must be called inside a transaction.
func (r *repository) LockRide(ctx context.Context, rideID int64) error {
	var ride models.Ride
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", rideID).
		First(&ride).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.RideDocument{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
