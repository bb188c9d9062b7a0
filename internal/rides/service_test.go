package rides

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseshare/courseshare-backend/internal/documents"
	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/storage"
	"github.com/courseshare/courseshare-backend/pkg/visibility"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func pdfUpload(t *testing.T, name string) documents.Upload {
	t.Helper()
	upload, err := documents.NewUpload(name, int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
	require.NoError(t, err)
	return upload
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code(), "unexpected error: %v", err)
}

func TestCreateRideStartsAvailableAndHidden(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")

	ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), []documents.Upload{pdfUpload(t, "bon de transport.pdf")})
	require.NoError(t, err)
	assert.Equal(t, enums.RideStatusAvailable, ride.Status)
	assert.Equal(t, enums.DocumentsHidden, ride.DocumentsVisibility)
	assert.Nil(t, ride.AcceptedBy)
	require.Len(t, ride.Documents, 1)
	assert.Equal(t, "application/pdf", ride.Documents[0].MimeType)

	body, err := env.files.Get(ctx, ride.Documents[0].StorageKey)
	require.NoError(t, err)
	stored, _ := io.ReadAll(body)
	_ = body.Close()
	assert.Equal(t, pdfBytes, stored)

	anonymous, err := env.svc.GetRide(ctx, ride.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, visibility.Redacted, anonymous.ClientName)
	assert.Equal(t, visibility.Redacted, anonymous.ClientPhone)
	assert.Equal(t, "12 "+visibility.Redacted, anonymous.Pickup)
	assert.Empty(t, anonymous.Documents)

	owner, err := env.svc.GetRide(ctx, ride.ID, publisher.ID)
	require.NoError(t, err)
	assert.Equal(t, "Marie Curie", owner.ClientName)
	assert.Len(t, owner.Documents, 1)

	snapshot, err := env.ledger.Snapshot(ctx, publisher.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.PublishedCount)
	assert.Len(t, env.notifier.byType(enums.NotificationTypeNewRide), 1)
}

func TestCreateRideValidatesMedicalSubtype(t *testing.T) {
	env := newTestEnv(t, 5)
	publisher := seedUser(t, env.conn, "75")

	draft := validDraft()
	draft.CourseType = enums.CourseTypeMedical
	_, err := env.svc.CreateRide(context.Background(), publisher.ID, draft, nil)
	requireCode(t, err, pkgerrors.CodeValidation)

	draft.MedicalType = medicalType("dialyse")
	ride, err := env.svc.CreateRide(context.Background(), publisher.ID, draft, nil)
	require.NoError(t, err)
	require.NotNil(t, ride.MedicalType)
	assert.Equal(t, "dialyse", *ride.MedicalType)
}

func TestCreateRideRejectsTooManyDocuments(t *testing.T) {
	env := newTestEnv(t, 5)
	publisher := seedUser(t, env.conn, "75")

	uploads := make([]documents.Upload, 0, documents.MaxFilesPerRide+1)
	for i := 0; i <= documents.MaxFilesPerRide; i++ {
		uploads = append(uploads, pdfUpload(t, "doc.pdf"))
	}
	_, err := env.svc.CreateRide(context.Background(), publisher.ID, validDraft(), uploads)
	requireCode(t, err, pkgerrors.CodeValidation)

	var count int64
	require.NoError(t, env.conn.Model(&models.Ride{}).Count(&count).Error)
	assert.Zero(t, count)
}

type failingStore struct {
	storage.FileStore
	failAfter int
	puts      []string
	deleted   []string
}

func (f *failingStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if len(f.puts) >= f.failAfter {
		return errors.New("bucket unavailable")
	}
	f.puts = append(f.puts, key)
	return nil
}

func (f *failingStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestCreateRideRemovesStagedFilesOnFailure(t *testing.T) {
	env := newTestEnv(t, 5)
	publisher := seedUser(t, env.conn, "75")
	store := &failingStore{failAfter: 1}
	env.svc.(*service).files = store

	_, err := env.svc.CreateRide(context.Background(), publisher.ID, validDraft(), []documents.Upload{
		pdfUpload(t, "a.pdf"),
		pdfUpload(t, "b.pdf"),
	})
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.Equal(t, store.puts, store.deleted)

	var count int64
	require.NoError(t, env.conn.Model(&models.Ride{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAcceptRideLifecycle(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")
	taker := seedUser(t, env.conn, "92")

	ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), nil)
	require.NoError(t, err)

	accepted, err := env.svc.AcceptRide(ctx, ride.ID, taker.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RideStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedBy)
	assert.Equal(t, taker.ID, *accepted.AcceptedBy)
	assert.Equal(t, enums.DocumentsVisible, accepted.DocumentsVisibility)

	stored, err := NewRepository(env.conn).FindByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RideStatusAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedAt)

	snapshot, err := env.ledger.Snapshot(ctx, taker.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.AcceptedCount)

	_, err = env.svc.AcceptRide(ctx, ride.ID, publisher.ID)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	_, err = env.svc.AcceptRide(ctx, ride.ID, seedUser(t, env.conn, "93").ID)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	notified := env.notifier.byType(enums.NotificationTypeRideAccepted)
	require.Len(t, notified, 1)
	assert.Equal(t, []uuid.UUID{publisher.ID}, notified[0].userIDs)

	// Once accepted, any viewer sees the full ride.
	view, err := env.svc.GetRide(ctx, ride.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, "Marie Curie", view.ClientName)
}

func TestAcceptOwnRideFails(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")

	ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), nil)
	require.NoError(t, err)

	_, err = env.svc.AcceptRide(ctx, ride.ID, publisher.ID)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	assert.Equal(t, "cannot accept your own ride", pkgerrors.As(err).Message())
}

func TestAcceptRideUnknown(t *testing.T) {
	env := newTestEnv(t, 5)
	_, err := env.svc.AcceptRide(context.Background(), 4242, seedUser(t, env.conn, "75").ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestAcceptRideQuotaExceeded(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")
	taker := seedUser(t, env.conn, "92")

	ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), nil)
	require.NoError(t, err)

	_, err = env.svc.AcceptRide(ctx, ride.ID, taker.ID)
	requireCode(t, err, pkgerrors.CodeQuotaExceeded)
	assert.Equal(t, map[string]any{"remaining": 0}, pkgerrors.As(err).Details())
	assert.Contains(t, pkgerrors.As(err).Message(), "vous avez atteint la limite de 0 courses")

	stored, err := NewRepository(env.conn).FindByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RideStatusAvailable, stored.Status)
}

func TestAcceptRideConcurrentOnlyOneWins(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")
	ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), nil)
	require.NoError(t, err)

	const contenders = 8
	takers := make([]uuid.UUID, contenders)
	for i := range takers {
		takers[i] = seedUser(t, env.conn, "92").ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for _, taker := range takers {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := env.svc.AcceptRide(ctx, ride.ID, id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
				conflicts++
			}
		}(taker)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, contenders-1, conflicts)
}

func TestUpdateStatusCompletesAndBlocksDelete(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")
	taker := seedUser(t, env.conn, "92")

	ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), nil)
	require.NoError(t, err)
	_, err = env.svc.AcceptRide(ctx, ride.ID, taker.ID)
	require.NoError(t, err)

	_, err = env.svc.UpdateStatus(ctx, ride.ID, seedUser(t, env.conn, "13").ID, enums.RideStatusCompleted)
	requireCode(t, err, pkgerrors.CodeForbidden)

	completed, err := env.svc.UpdateStatus(ctx, ride.ID, publisher.ID, enums.RideStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, enums.RideStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	err = env.svc.DeleteRide(ctx, ride.ID, publisher.ID)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	assert.Equal(t, "cannot delete accepted or completed ride", pkgerrors.As(err).Message())

	_, err = env.svc.UpdateStatus(ctx, ride.ID, taker.ID, enums.RideStatusCancelled)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	notified := env.notifier.byType(enums.NotificationTypeRideCompleted)
	require.Len(t, notified, 1)
	assert.Equal(t, []uuid.UUID{taker.ID}, notified[0].userIDs)
}

func TestUpdateStatusCancelFromAvailable(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")

	ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), nil)
	require.NoError(t, err)

	_, err = env.svc.UpdateStatus(ctx, ride.ID, publisher.ID, enums.RideStatusAccepted)
	requireCode(t, err, pkgerrors.CodeValidation)

	cancelled, err := env.svc.UpdateStatus(ctx, ride.ID, publisher.ID, enums.RideStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, enums.RideStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.CompletedAt)
}

func TestDeleteRide(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")
	other := seedUser(t, env.conn, "92")

	ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), []documents.Upload{pdfUpload(t, "a.pdf"), pdfUpload(t, "b.pdf")})
	require.NoError(t, err)
	keys := []string{ride.Documents[0].StorageKey, ride.Documents[1].StorageKey}

	requireCode(t, env.svc.DeleteRide(ctx, ride.ID, other.ID), pkgerrors.CodeForbidden)

	require.NoError(t, env.svc.DeleteRide(ctx, ride.ID, publisher.ID))

	_, err = env.svc.GetRide(ctx, ride.ID, publisher.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	var docs int64
	require.NoError(t, env.conn.Model(&models.RideDocument{}).Count(&docs).Error)
	assert.Zero(t, docs)
	for _, key := range keys {
		_, err := env.files.Get(ctx, key)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

// uploadAfterLoad runs onFind once, right after the ride is read outside a transaction.
type uploadAfterLoad struct {
	Repository
	onFind func()
}

func (r *uploadAfterLoad) FindByID(ctx context.Context, id int64) (*models.Ride, error) {
	ride, err := r.Repository.FindByID(ctx, id)
	if err == nil && r.onFind != nil {
		r.onFind()
		r.onFind = nil
	}
	return ride, err
}

func TestDeleteRideUnlinksDocumentsAddedAfterLoad(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")

	ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), nil)
	require.NoError(t, err)

	late := models.RideDocument{
		ID:         uuid.New(),
		RideID:     ride.ID,
		UploadedBy: publisher.ID,
		Name:       "late.pdf",
		MimeType:   "application/pdf",
		SizeBytes:  int64(len(pdfBytes)),
	}
	late.StorageKey = storage.RideDocumentKey("rides", ride.ID, late.ID, late.Name)

	params := env.params
	params.Repo = &uploadAfterLoad{
		Repository: NewRepository(env.conn),
		onFind: func() {
			require.NoError(t, env.files.Put(ctx, late.StorageKey, bytes.NewReader(pdfBytes), late.SizeBytes, late.MimeType))
			require.NoError(t, env.conn.Create(&late).Error)
		},
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRide(ctx, ride.ID, publisher.ID))

	var docs int64
	require.NoError(t, env.conn.Model(&models.RideDocument{}).Where("ride_id = ?", ride.ID).Count(&docs).Error)
	assert.Zero(t, docs)
	_, err = env.files.Get(ctx, late.StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListAvailableSanitizesAndPages(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	publisher := seedUser(t, env.conn, "75")
	taker := seedUser(t, env.conn, "92")

	var ids []int64
	for i := 0; i < 3; i++ {
		ride, err := env.svc.CreateRide(ctx, publisher.ID, validDraft(), nil)
		require.NoError(t, err)
		ids = append(ids, ride.ID)
	}
	medical := validDraft()
	medical.CourseType = enums.CourseTypeMedical
	medical.MedicalType = medicalType("consultation")
	medical.DepartureDepartment = "13"
	medical.ArrivalDepartment = "13"
	_, err := env.svc.CreateRide(ctx, publisher.ID, medical, nil)
	require.NoError(t, err)

	_, err = env.svc.AcceptRide(ctx, ids[0], taker.ID)
	require.NoError(t, err)

	first, err := env.svc.ListAvailable(ctx, uuid.Nil, ListParams{Department: "92", Limit: 1})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, ids[2], first.Items[0].ID)
	assert.Equal(t, visibility.Redacted, first.Items[0].ClientName)
	require.NotEmpty(t, first.Cursor)

	second, err := env.svc.ListAvailable(ctx, uuid.Nil, ListParams{Department: "92", Limit: 1, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, ids[1], second.Items[0].ID)
	assert.Empty(t, second.Cursor)

	medicalOnly, err := env.svc.ListAvailable(ctx, publisher.ID, ListParams{CourseType: enums.CourseTypeMedical})
	require.NoError(t, err)
	require.Len(t, medicalOnly.Items, 1)
	assert.Equal(t, "Marie Curie", medicalOnly.Items[0].ClientName)

	accepted, err := env.svc.ListAccepted(ctx, taker.ID, ListParams{})
	require.NoError(t, err)
	require.Len(t, accepted.Items, 1)
	assert.Equal(t, ids[0], accepted.Items[0].ID)

	published, err := env.svc.ListPublished(ctx, publisher.ID, ListParams{})
	require.NoError(t, err)
	assert.Len(t, published.Items, 4)
}

func TestNotificationFailureDoesNotFailCreate(t *testing.T) {
	env := newTestEnv(t, 5)
	env.notifier.err = errors.New("push relay down")
	publisher := seedUser(t, env.conn, "75")

	ride, err := env.svc.CreateRide(context.Background(), publisher.ID, validDraft(), nil)
	require.NoError(t, err)
	assert.NotZero(t, ride.ID)
}
