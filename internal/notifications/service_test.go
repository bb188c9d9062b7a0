package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	paginationpkg "github.com/courseshare/courseshare-backend/pkg/pagination"
)

type fakeRepository struct {
	createManyFn  func(ctx context.Context, rows []models.Notification) error
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	deleteFn      func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) CreateMany(ctx context.Context, rows []models.Notification) error {
	if f.createManyFn != nil {
		return f.createManyFn(ctx, rows)
	}
	return nil
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID, now)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID, now)
	}
	return 0, nil
}

func (f *fakeRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, cutoff)
	}
	return 0, nil
}

type fakePublisher struct {
	published [][]byte
	attrs     []map[string]string
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, data)
	f.attrs = append(f.attrs, attributes)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard})
}

func newServiceWithRepo(repo Repository, publisher Publisher) Service {
	svc, _ := NewService(ServiceParams{Repo: repo, Publisher: publisher, Logger: testLogger()})
	return svc
}

func TestService_NotifyUsersInsertsAndPublishes(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	rideID := int64(7)
	var inserted []models.Notification
	repo := &fakeRepository{
		createManyFn: func(ctx context.Context, rows []models.Notification) error {
			inserted = rows
			return nil
		},
	}
	pub := &fakePublisher{}
	svc := newServiceWithRepo(repo, pub)

	err := svc.NotifyUsers(context.Background(), []uuid.UUID{first, second, first, uuid.Nil}, Payload{
		Type:    enums.NotificationTypeNewRide,
		Title:   "Nouvelle course",
		Message: "75 -> 92",
		RideID:  &rideID,
	})
	if err != nil {
		t.Fatalf("unexpected notify error: %v", err)
	}
	if len(inserted) != 2 {
		t.Fatalf("expected 2 deduplicated rows, got %d", len(inserted))
	}
	if inserted[0].UserID != first || inserted[1].UserID != second {
		t.Fatalf("unexpected recipients %v %v", inserted[0].UserID, inserted[1].UserID)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one push message, got %d", len(pub.published))
	}
	var body pushMessage
	if err := json.Unmarshal(pub.published[0], &body); err != nil {
		t.Fatalf("decode push message: %v", err)
	}
	if len(body.UserIDs) != 2 || body.RideID == nil || *body.RideID != rideID {
		t.Fatalf("unexpected push body %+v", body)
	}
	if pub.attrs[0]["type"] != string(enums.NotificationTypeNewRide) {
		t.Fatalf("unexpected attributes %v", pub.attrs[0])
	}
}

func TestService_NotifyUsersWithoutRecipientsIsNoop(t *testing.T) {
	repo := &fakeRepository{
		createManyFn: func(ctx context.Context, rows []models.Notification) error {
			t.Fatal("insert should not be called")
			return nil
		},
	}
	svc := newServiceWithRepo(repo, nil)
	if err := svc.NotifyUsers(context.Background(), nil, Payload{Type: enums.NotificationTypeNewRide}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestService_NotifyUsersPublishFailure(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{}, &fakePublisher{err: errors.New("unavailable")})
	err := svc.NotifyUsers(context.Background(), []uuid.UUID{uuid.New()}, Payload{Type: enums.NotificationTypeRideAccepted})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestService_ListNotifications(t *testing.T) {
	first := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}
	second := models.Notification{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
			if params.Limit != paginationpkg.LimitWithBuffer(1) {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			return []models.Notification{first, second}, nil
		},
	}

	svc := newServiceWithRepo(repo, nil)
	result, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Limit: 1})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("expected cursor for next page")
	}
	decoded, err := paginationpkg.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("invalid cursor %q: %v", result.Cursor, err)
	}
	if decoded.ID != first.ID.String() {
		t.Fatalf("expected cursor id %s got %s", first.ID, decoded.ID)
	}
}

func TestService_ListNotificationsInvalidCursor(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{}, nil)
	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "bad"})
	if err == nil {
		t.Fatal("expected error for invalid cursor")
	}
	errCode := pkgerrors.As(err).Code()
	if errCode != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", errCode)
	}
}

func TestService_MarkRead(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: true}, nil
		},
	}
	svc := newServiceWithRepo(repo, nil)
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc := newServiceWithRepo(repo, nil)
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err == nil {
		t.Fatal("expected not found error")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_MarkAllRead(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
			return 3, nil
		},
	}
	svc := newServiceWithRepo(repo, nil)
	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected mark all read error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 updated rows, got %d", count)
	}
}

func TestService_MarkAllReadError(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
			return 0, errors.New("boom")
		},
	}
	svc := newServiceWithRepo(repo, nil)
	if _, err := svc.MarkAllRead(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}
