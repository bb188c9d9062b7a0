package documents

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/pkg/async"
	"github.com/courseshare/courseshare-backend/pkg/db/models"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	"github.com/courseshare/courseshare-backend/pkg/storage"
	"github.com/courseshare/courseshare-backend/pkg/visibility"
)

const taskUnlinkDocument = "storage.unlink_document"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rideFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Ride, error)
}

// Service manages documents attached to a ride after its creation.
type Service interface {
	List(ctx context.Context, rideID int64, userID uuid.UUID) ([]models.RideDocument, error)
	Upload(ctx context.Context, rideID int64, userID uuid.UUID, upload Upload) (*models.RideDocument, error)
	Download(ctx context.Context, documentID, userID uuid.UUID) (*Download, error)
	Delete(ctx context.Context, documentID, userID uuid.UUID) error
}

// Download carries a document and its content. Callers must close Body.
type Download struct {
	Document models.RideDocument
	Body     io.ReadCloser
}

// ServiceParams wire the documents service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Rides     rideFinder
	Files     storage.FileStore
	KeyPrefix string
	Runner    async.Runner
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	rides     rideFinder
	files     storage.FileStore
	keyPrefix string
	runner    async.Runner
	logg      *logger.Logger
}

// NewService builds a documents service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("documents repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Rides == nil {
		return nil, fmt.Errorf("rides repository required")
	}
	if params.Files == nil {
		return nil, fmt.Errorf("file store required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("task runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		rides:     params.Rides,
		files:     params.Files,
		keyPrefix: params.KeyPrefix,
		runner:    params.Runner,
		logg:      params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, rideID int64, userID uuid.UUID) ([]models.RideDocument, error) {
	if _, err := s.authorize(ctx, rideID, userID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListByRide(ctx, rideID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list documents")
	}
	if docs == nil {
		docs = []models.RideDocument{}
	}
	return docs, nil
}

func (s *service) Upload(ctx context.Context, rideID int64, userID uuid.UUID, upload Upload) (*models.RideDocument, error) {
	if _, err := s.authorize(ctx, rideID, userID); err != nil {
		return nil, err
	}

	// early rejection before the upload; repeated under the ride lock below
	count, total, err := s.repo.Totals(ctx, rideID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load document totals")
	}
	if err := ValidateBatch(count, total, []Upload{upload}); err != nil {
		return nil, err
	}

	doc := &models.RideDocument{
		ID:         uuid.New(),
		RideID:     rideID,
		UploadedBy: userID,
		Name:       upload.Name,
		MimeType:   upload.ContentType,
		SizeBytes:  upload.Size,
	}
	doc.StorageKey = storage.RideDocumentKey(s.keyPrefix, rideID, doc.ID, upload.Name)

	if err := s.files.Put(ctx, doc.StorageKey, upload.Body, upload.Size, upload.ContentType); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store document")
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockRide(ctx, rideID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock ride")
		}
		count, total, err := repo.Totals(ctx, rideID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load document totals")
		}
		if err := ValidateBatch(count, total, []Upload{upload}); err != nil {
			return err
		}
		if err := repo.Create(ctx, doc); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create document")
		}
		return nil
	})
	if err != nil {
		if delErr := s.files.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logg.Error(s.logg.WithField(ctx, "key", doc.StorageKey), "documents.cleanup_failed", delErr)
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(s.logg.WithRideID(ctx, rideID), map[string]any{
		"document_id": doc.ID.String(),
		"size_bytes":  doc.SizeBytes,
	}), "documents.uploaded")
	return doc, nil
}

func (s *service) Download(ctx context.Context, documentID, userID uuid.UUID) (*Download, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, doc.RideID, userID); err != nil {
		return nil, err
	}

	body, err := s.files.Get(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document content missing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read document")
	}
	return &Download{Document: *doc, Body: body}, nil
}

func (s *service) Delete(ctx context.Context, documentID, userID uuid.UUID) error {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	ride, err := s.loadRide(ctx, doc.RideID)
	if err != nil {
		return err
	}
	if err := visibility.DocumentManage(ride, userID); err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, doc.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete document")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}

	key := doc.StorageKey
	s.runner.Submit(ctx, taskUnlinkDocument, func(ctx context.Context) error {
		return s.files.Delete(ctx, key)
	})
	return nil
}

func (s *service) authorize(ctx context.Context, rideID int64, userID uuid.UUID) (*models.Ride, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if _, err := visibility.DocumentAccess(ride, userID); err != nil {
		return nil, err
	}
	return ride, nil
}

func (s *service) loadRide(ctx context.Context, rideID int64) (*models.Ride, error) {
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ride")
	}
	return ride, nil
}

func (s *service) loadDocument(ctx context.Context, documentID uuid.UUID) (*models.RideDocument, error) {
	if documentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document id required")
	}
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load document")
	}
	return doc, nil
}
