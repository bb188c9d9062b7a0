package documents

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/courseshare/courseshare-backend/pkg/async"
	"github.com/courseshare/courseshare-backend/pkg/db"
	"github.com/courseshare/courseshare-backend/pkg/db/models"
	"github.com/courseshare/courseshare-backend/pkg/enums"
	pkgerrors "github.com/courseshare/courseshare-backend/pkg/errors"
	"github.com/courseshare/courseshare-backend/pkg/logger"
)

// gatedStore holds every Put until all expected uploads have reached storage,
// so the uploads only meet again at the database.
type gatedStore struct {
	*memStore
	arrived sync.WaitGroup
	release chan struct{}
}

func (g *gatedStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	g.arrived.Done()
	<-g.release
	return g.memStore.Put(ctx, key, body, size, contentType)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:documents_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func TestUploadConcurrentKeepsPerRideLimit(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	publisher, taker := uuid.New(), uuid.New()
	ride := models.Ride{
		PublishedBy:         publisher,
		DepartureDepartment: "75",
		ArrivalDepartment:   "92",
		Zone:                "Île-de-France",
		Distance:            "12 km",
		CourseType:          enums.CourseTypeNormal,
		ScheduledDate:       time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
		DepartureTime:       "08:30",
		ClientName:          "Jeanne Martin",
		ClientPhone:         "0612345678",
		Pickup:              "12 rue de Rivoli",
		Destination:         "Hôpital Foch",
		Status:              enums.RideStatusAccepted,
		AcceptedBy:          &taker,
		DocumentsVisibility: enums.DocumentsVisible,
	}
	require.NoError(t, conn.Create(&ride).Error)

	const contenders = 8
	files := &gatedStore{memStore: newMemStore(), release: make(chan struct{})}
	files.arrived.Add(contenders)

	logg := logger.New(logger.Options{ServiceName: "documents-test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Tx:     db.NewFromConn(conn),
		Rides:  &fakeRides{rides: map[int64]*models.Ride{ride.ID: &ride}},
		Files:  files,
		Runner: async.Inline{Logger: logg},
		Logger: logg,
	})
	require.NoError(t, err)

	uploads := make([]Upload, contenders)
	for i := range uploads {
		uploads[i] = upload(t)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		stored   int
		rejected int
	)
	for _, u := range uploads {
		wg.Add(1)
		go func(u Upload) {
			defer wg.Done()
			_, err := svc.Upload(ctx, ride.ID, taker, u)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stored++
			case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
				rejected++
			default:
				t.Errorf("unexpected upload error: %v", err)
			}
		}(u)
	}
	files.arrived.Wait()
	close(files.release)
	wg.Wait()

	assert.Equal(t, MaxFilesPerRide, stored)
	assert.Equal(t, contenders-MaxFilesPerRide, rejected)

	var count int64
	require.NoError(t, conn.Model(&models.RideDocument{}).Where("ride_id = ?", ride.ID).Count(&count).Error)
	assert.EqualValues(t, MaxFilesPerRide, count)
	assert.Len(t, files.objects, MaxFilesPerRide)
}
