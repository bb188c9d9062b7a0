package rides

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/internal/ledger"
	"github.com/courseshare/courseshare-backend/internal/notifications"
	"github.com/courseshare/courseshare-backend/pkg/async"
	"github.com/courseshare/courseshare-backend/pkg/db"
	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	"github.com/courseshare/courseshare-backend/pkg/logger"
	"github.com/courseshare/courseshare-backend/pkg/storage/local"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:rides_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, department string) models.User {
	t.Helper()
	user := models.User{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		FirstName:    "Louise",
		LastName:     "Michel",
		Department:   department,
		Role:         enums.UserRoleDriver,
		IsActive:     true,
		ReferralCode: uuid.NewString()[:8],
	}
	require.NoError(t, conn.Create(&user).Error)
	require.NoError(t, conn.Create(&models.Subscription{UserID: user.ID, Status: enums.SubscriptionStatusFree}).Error)
	return user
}

type notification struct {
	userIDs []uuid.UUID
	payload notifications.Payload
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) NotifyUsers(ctx context.Context, userIDs []uuid.UUID, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userIDs: append([]uuid.UUID(nil), userIDs...), payload: payload})
	return n.err
}

func (n *recordingNotifier) byType(kind enums.NotificationType) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, sent := range n.sent {
		if sent.payload.Type == kind {
			out = append(out, sent)
		}
	}
	return out
}

type fakeRecipients struct {
	ids []uuid.UUID
	err error
}

func (f *fakeRecipients) ListIDsByDepartments(ctx context.Context, departments []string, exclude uuid.UUID) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type testEnv struct {
	conn     *gorm.DB
	svc      Service
	ledger   ledger.Service
	files    *local.Store
	notifier *recordingNotifier
	params   ServiceParams
	now      time.Time
}

func newTestEnv(t *testing.T, freeLimit int) *testEnv {
	t.Helper()
	conn := openTestDB(t)
	now := time.Date(2026, 4, 14, 10, 0, 0, 0, time.UTC)
	logg := logger.New(logger.Options{ServiceName: "rides-test", Output: io.Discard})

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:              ledger.NewRepository(conn),
		FreePlanRideLimit: freeLimit,
		Location:          time.UTC,
		Now:               func() time.Time { return now },
	})
	require.NoError(t, err)

	files, err := local.New(t.TempDir())
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	params := ServiceParams{
		Repo:       NewRepository(conn),
		Tx:         db.NewFromConn(conn),
		Ledger:     ledgerSvc,
		Files:      files,
		KeyPrefix:  "rides",
		Runner:     async.Inline{Logger: logg},
		Notifier:   notifier,
		Recipients: &fakeRecipients{},
		Logger:     logg,
		Now:        func() time.Time { return now },
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return &testEnv{conn: conn, svc: svc, ledger: ledgerSvc, files: files, notifier: notifier, params: params, now: now}
}

func validDraft() RideDraft {
	return RideDraft{
		DepartureDepartment: "75",
		ArrivalDepartment:   "92",
		Zone:                "Île-de-France",
		Distance:            "12 km",
		CourseType:          enums.CourseTypeNormal,
		Date:                "2026-04-20",
		DepartureTime:       "08:30",
		ClientName:          "Marie Curie",
		ClientPhone:         "0612345678",
		Pickup:              "12 rue de Rivoli",
		Destination:         "3 avenue de la Défense",
	}
}

func medicalType(value string) *string { return &value }
