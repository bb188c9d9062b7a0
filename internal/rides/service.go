package rides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/internal/documents"
	"github.com/courseshare/courseshare-backend/internal/ledger"
	"github.com/courseshare/courseshare-backend/internal/notifications"
	"github.com/courseshare/courseshare-backend/pkg/async"
	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	"github.com/courseshare/courseshare-backend/pkg/metrics"
	"github.com/courseshare/courseshare-backend/pkg/pagination"
	"github.com/courseshare/courseshare-backend/pkg/storage"
	"github.com/courseshare/courseshare-backend/pkg/visibility"
)

const (
	taskNewRideFanout   = "rides.notify_new_ride"
	taskRideEventNotify = "rides.notify_participant"
	taskUsageIncrement  = "usage.increment"
	taskUnlinkFiles     = "storage.unlink"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	NotifyUsers(ctx context.Context, userIDs []uuid.UUID, payload notifications.Payload) error
}

type recipientFinder interface {
	ListIDsByDepartments(ctx context.Context, departments []string, exclude uuid.UUID) ([]uuid.UUID, error)
}

// Service is the ride lifecycle engine plus its read side.
type Service interface {
	CreateRide(ctx context.Context, publisherID uuid.UUID, draft RideDraft, uploads []documents.Upload) (*models.Ride, error)
	AcceptRide(ctx context.Context, rideID int64, callerID uuid.UUID) (*models.Ride, error)
	UpdateStatus(ctx context.Context, rideID int64, callerID uuid.UUID, target enums.RideStatus) (*models.Ride, error)
	DeleteRide(ctx context.Context, rideID int64, callerID uuid.UUID) error
	GetRide(ctx context.Context, rideID int64, viewerID uuid.UUID) (*models.Ride, error)
	ListAvailable(ctx context.Context, viewerID uuid.UUID, params ListParams) (*ListResult, error)
	ListPublished(ctx context.Context, userID uuid.UUID, params ListParams) (*ListResult, error)
	ListAccepted(ctx context.Context, userID uuid.UUID, params ListParams) (*ListResult, error)
}

// ServiceParams packages the lifecycle engine dependencies.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Ledger     ledger.Service
	Files      storage.FileStore
	KeyPrefix  string
	Runner     async.Runner
	Notifier   notifier
	Recipients recipientFinder
	Metrics    *metrics.RideMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// ListParams filter and page ride listings.
type ListParams struct {
	Department string
	CourseType enums.CourseType
	Date       *time.Time
	Limit      int
	Cursor     string
}

// ListResult wraps a page of rides.
type ListResult struct {
	Items  []models.Ride `json:"items"`
	Cursor string        `json:"cursor"`
}

type service struct {
	repo       Repository
	tx         txRunner
	ledger     ledger.Service
	files      storage.FileStore
	keyPrefix  string
	runner     async.Runner
	notifier   notifier
	recipients recipientFinder
	metrics    *metrics.RideMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the ride lifecycle engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("rides repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("usage ledger required")
	}
	if params.Files == nil {
		return nil, fmt.Errorf("file store required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("task runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Recipients == nil {
		return nil, fmt.Errorf("recipient finder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		ledger:     params.Ledger,
		files:      params.Files,
		keyPrefix:  params.KeyPrefix,
		runner:     params.Runner,
		notifier:   params.Notifier,
		recipients: params.Recipients,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
	}, nil
}

func (s *service) CreateRide(ctx context.Context, publisherID uuid.UUID, draft RideDraft, uploads []documents.Upload) (*models.Ride, error) {
	if publisherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := draft.Validate(); err != nil {
		s.metrics.Observe(metrics.TransitionCreate, metrics.OutcomeRejected)
		return nil, err
	}
	if err := documents.ValidateBatch(0, 0, uploads); err != nil {
		s.metrics.Observe(metrics.TransitionCreate, metrics.OutcomeRejected)
		return nil, err
	}
	ride, err := draft.ToModel(publisherID)
	if err != nil {
		return nil, err
	}

	var staged []string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, ride); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create ride")
		}

		docs := make([]models.RideDocument, 0, len(uploads))
		for _, upload := range uploads {
			docID := uuid.New()
			key := storage.RideDocumentKey(s.keyPrefix, ride.ID, docID, upload.Name)
			if err := s.files.Put(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store ride document")
			}
			staged = append(staged, key)
			docs = append(docs, models.RideDocument{
				ID:         docID,
				RideID:     ride.ID,
				UploadedBy: publisherID,
				Name:       upload.Name,
				StorageKey: key,
				MimeType:   upload.ContentType,
				SizeBytes:  upload.Size,
			})
		}
		if err := repo.CreateDocuments(ctx, docs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create ride documents")
		}
		ride.Documents = docs
		return nil
	})
	if err != nil {
		s.removeStaged(ctx, staged)
		s.metrics.Observe(metrics.TransitionCreate, metrics.OutcomeError)
		return nil, err
	}

	ctx = s.logg.WithRideID(ctx, ride.ID)
	s.metrics.Observe(metrics.TransitionCreate, metrics.OutcomeSuccess)
	s.logg.Info(ctx, "ride.created")

	s.runner.Submit(ctx, taskUsageIncrement, func(ctx context.Context) error {
		return s.ledger.IncrementUsage(ctx, publisherID, enums.UsagePublished)
	})
	created := *ride
	s.runner.Submit(ctx, taskNewRideFanout, func(ctx context.Context) error {
		return s.fanOutNewRide(ctx, created)
	})
	return ride, nil
}

func (s *service) fanOutNewRide(ctx context.Context, ride models.Ride) error {
	departments := []string{ride.DepartureDepartment}
	if ride.ArrivalDepartment != ride.DepartureDepartment {
		departments = append(departments, ride.ArrivalDepartment)
	}
	recipients, err := s.recipients.ListIDsByDepartments(ctx, departments, ride.PublishedBy)
	if err != nil {
		return fmt.Errorf("list fan-out recipients: %w", err)
	}
	rideID := ride.ID
	return s.notifier.NotifyUsers(ctx, recipients, notifications.Payload{
		Type:    enums.NotificationTypeNewRide,
		Title:   "Nouvelle course disponible",
		Message: fmt.Sprintf("%s → %s le %s à %s", ride.DepartureDepartment, ride.ArrivalDepartment, ride.ScheduledDate.Format("02/01/2006"), ride.DepartureTime),
		RideID:  &rideID,
	})
}

func (s *service) removeStaged(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	var errs error
	for _, key := range keys {
		errs = multierr.Append(errs, s.files.Delete(ctx, key))
	}
	if errs != nil {
		s.logg.Error(s.logg.WithField(ctx, "keys", keys), "ride.staged_cleanup_failed", errs)
	}
}

func (s *service) AcceptRide(ctx context.Context, rideID int64, callerID uuid.UUID) (*models.Ride, error) {
	if callerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ctx = s.logg.WithRideID(ctx, rideID)

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != enums.RideStatusAvailable {
		s.metrics.Observe(metrics.TransitionAccept, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "ride is no longer available").
			WithDetails(map[string]any{"status": ride.Status})
	}
	if ride.PublishedBy == callerID {
		s.metrics.Observe(metrics.TransitionAccept, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot accept your own ride")
	}

	decision, err := s.ledger.CanAcceptRide(ctx, callerID)
	if err != nil {
		s.metrics.Observe(metrics.TransitionAccept, metrics.OutcomeError)
		return nil, err
	}
	if !decision.Allowed {
		s.metrics.Observe(metrics.TransitionAccept, metrics.OutcomeRejected)
		s.metrics.IncQuotaDenied()
		return nil, ledger.QuotaError(decision)
	}

	now := s.now()
	accepted, err := s.repo.Accept(ctx, rideID, callerID, now)
	if err != nil {
		s.metrics.Observe(metrics.TransitionAccept, metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "accept ride")
	}
	if !accepted {
		s.metrics.Observe(metrics.TransitionAccept, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "ride is no longer available")
	}

	ride.Status = enums.RideStatusAccepted
	ride.AcceptedBy = &callerID
	ride.AcceptedAt = &now
	ride.DocumentsVisibility = enums.DocumentsVisible
	ride.UpdatedAt = now

	s.metrics.Observe(metrics.TransitionAccept, metrics.OutcomeSuccess)
	s.logg.Info(s.logg.WithUserID(ctx, callerID.String()), "ride.accepted")

	s.runner.Submit(ctx, taskUsageIncrement, func(ctx context.Context) error {
		return s.ledger.IncrementUsage(ctx, callerID, enums.UsageAccepted)
	})
	s.notifyParticipant(ctx, ride.PublishedBy, ride.ID, enums.NotificationTypeRideAccepted,
		"Course acceptée", fmt.Sprintf("Votre course #%d a été acceptée", ride.ID))
	return ride, nil
}

func (s *service) UpdateStatus(ctx context.Context, rideID int64, callerID uuid.UUID, target enums.RideStatus) (*models.Ride, error) {
	if callerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if target != enums.RideStatusCompleted && target != enums.RideStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be completed or cancelled")
	}
	transition := metrics.TransitionComplete
	if target == enums.RideStatusCancelled {
		transition = metrics.TransitionCancel
	}
	ctx = s.logg.WithRideID(ctx, rideID)

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParticipant(callerID) {
		s.metrics.Observe(transition, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the publisher or the taker can change the ride status")
	}
	if ride.Status.IsTerminal() {
		s.metrics.Observe(transition, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("ride is already %s", ride.Status)).
			WithDetails(map[string]any{"status": ride.Status})
	}

	now := s.now()
	updated, err := s.repo.Close(ctx, rideID, target, now)
	if err != nil {
		s.metrics.Observe(transition, metrics.OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update ride status")
	}
	if !updated {
		s.metrics.Observe(transition, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "ride status changed concurrently")
	}

	ride.Status = target
	ride.UpdatedAt = now
	if target == enums.RideStatusCompleted {
		ride.CompletedAt = &now
	}
	s.metrics.Observe(transition, metrics.OutcomeSuccess)
	s.logg.Info(s.logg.WithField(ctx, "status", target), "ride.status_updated")

	if counterpart := counterpartOf(ride, callerID); counterpart != uuid.Nil {
		kind, title := enums.NotificationTypeRideCompleted, "Course terminée"
		if target == enums.RideStatusCancelled {
			kind, title = enums.NotificationTypeRideCancelled, "Course annulée"
		}
		s.notifyParticipant(ctx, counterpart, ride.ID, kind, title, fmt.Sprintf("La course #%d est désormais %s", ride.ID, target))
	}
	return ride, nil
}

func (s *service) DeleteRide(ctx context.Context, rideID int64, callerID uuid.UUID) error {
	if callerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ctx = s.logg.WithRideID(ctx, rideID)

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.PublishedBy != callerID {
		s.metrics.Observe(metrics.TransitionDelete, metrics.OutcomeRejected)
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the publisher can delete a ride")
	}
	if ride.Status != enums.RideStatusAvailable {
		s.metrics.Observe(metrics.TransitionDelete, metrics.OutcomeRejected)
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot delete accepted or completed ride")
	}

	var removed []models.RideDocument
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		docs, err := repo.DeleteDocuments(ctx, rideID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete ride documents")
		}
		removed = docs
		deleted, err := repo.DeleteAvailable(ctx, rideID, callerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete ride")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot delete accepted or completed ride")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
			s.metrics.Observe(metrics.TransitionDelete, metrics.OutcomeRejected)
		} else {
			s.metrics.Observe(metrics.TransitionDelete, metrics.OutcomeError)
		}
		return err
	}

	s.metrics.Observe(metrics.TransitionDelete, metrics.OutcomeSuccess)
	s.logg.Info(ctx, "ride.deleted")
	s.unlinkDocuments(ctx, removed)
	return nil
}

func (s *service) unlinkDocuments(ctx context.Context, docs []models.RideDocument) {
	if len(docs) == 0 {
		return
	}
	keys := make([]string, 0, len(docs))
	for _, doc := range docs {
		keys = append(keys, doc.StorageKey)
	}
	s.runner.Submit(ctx, taskUnlinkFiles, func(ctx context.Context) error {
		var errs error
		for _, key := range keys {
			errs = multierr.Append(errs, s.files.Delete(ctx, key))
		}
		return errs
	})
}

func (s *service) GetRide(ctx context.Context, rideID int64, viewerID uuid.UUID) (*models.Ride, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	sanitized := visibility.SanitizeRide(*ride, viewerID)
	return &sanitized, nil
}

func (s *service) ListAvailable(ctx context.Context, viewerID uuid.UUID, params ListParams) (*ListResult, error) {
	status := enums.RideStatusAvailable
	query := listRidesParams{
		Status:     &status,
		Department: params.Department,
		CourseType: params.CourseType,
		Date:       params.Date,
	}
	if params.CourseType != "" && !params.CourseType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid course type")
	}
	result, err := s.list(ctx, query, params)
	if err != nil {
		return nil, err
	}
	result.Items = visibility.SanitizeRides(result.Items, viewerID)
	return result, nil
}

func (s *service) ListPublished(ctx context.Context, userID uuid.UUID, params ListParams) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.list(ctx, listRidesParams{PublishedBy: &userID}, params)
}

func (s *service) ListAccepted(ctx context.Context, userID uuid.UUID, params ListParams) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.list(ctx, listRidesParams{AcceptedBy: &userID}, params)
}

func (s *service) list(ctx context.Context, query listRidesParams, params ListParams) (*ListResult, error) {
	query.Limit = pagination.LimitWithBuffer(params.Limit)
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		id, err := cursor.Int64ID()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
		query.CursorID = id
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list rides")
	}
	page := pagination.Trim(rows, params.Limit, func(r models.Ride) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: fmt.Sprintf("%d", r.ID)}
	})
	items := page.Items
	if items == nil {
		items = []models.Ride{}
	}
	return &ListResult{Items: items, Cursor: page.NextCursor}, nil
}

func (s *service) loadRide(ctx context.Context, rideID int64) (*models.Ride, error) {
	if rideID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ride id must be positive")
	}
	ride, err := s.repo.FindByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ride not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ride")
	}
	return ride, nil
}

func (s *service) notifyParticipant(ctx context.Context, userID uuid.UUID, rideID int64, kind enums.NotificationType, title, message string) {
	s.runner.Submit(ctx, taskRideEventNotify, func(ctx context.Context) error {
		return s.notifier.NotifyUsers(ctx, []uuid.UUID{userID}, notifications.Payload{
			Type:    kind,
			Title:   title,
			Message: message,
			RideID:  &rideID,
		})
	})
}

// counterpartOf returns the other party of the ride, or uuid.Nil when there is none.
func counterpartOf(ride *models.Ride, callerID uuid.UUID) uuid.UUID {
	if ride.PublishedBy != callerID {
		return ride.PublishedBy
	}
	if ride.AcceptedBy != nil {
		return *ride.AcceptedBy
	}
	return uuid.Nil
}
