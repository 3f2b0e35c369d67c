package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/taskbridge/intake-backend/v1/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SetupSQLiteTestDB creates an in-memory SQLite database for testing
func SetupSQLiteTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to SQLite test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Account{},
		&models.SubmissionProfile{},
		&models.JobDetail{},
		&models.ServiceDetail{},
		&models.RateCard{},
		&models.ProviderDocuments{},
		&models.LedgerEntry{},
		&models.CancellationLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// SetupMockDB creates a GORM connection backed by sqlmock for tests that
// assert on SQL behavior (drift retries, constraint retries)
func SetupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open GORM over sqlmock: %v", err)
	}

	cleanup := func() { _ = sqlDB.Close() }
	return db, mock, cleanup
}

// MockRoundTripper lets tests fake HTTP transport behavior
type MockRoundTripper struct {
	RoundTripFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.RoundTripFunc(req)
}

// fakeObjectStore is an in-memory ObjectStore used to simulate primary and
// fallback upload paths
type fakeObjectStore struct {
	mu       sync.Mutex
	name     string
	failPuts bool
	objects  map[string][]byte
	putCalls int
}

func newFakeObjectStore(name string, failPuts bool) *fakeObjectStore {
	return &fakeObjectStore{name: name, failPuts: failPuts, objects: map[string][]byte{}}
}

func (f *fakeObjectStore) EnsureBucket(ctx context.Context, bucket string) error {
	return nil
}

func (f *fakeObjectStore) Put(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.failPuts {
		return "", errors.New("simulated storage outage")
	}
	key := bucket + "/" + object
	f.objects[key] = append([]byte(nil), data...)
	return fmt.Sprintf("https://%s.example.com/%s", f.name, key), nil
}

// newTestStorage builds a StorageService over fake stores
func newTestStorage(primaryFails bool) (*StorageService, *fakeObjectStore, *fakeObjectStore) {
	primary := newFakeObjectStore("primary", primaryFails)
	fallback := newFakeObjectStore("fallback", false)
	return NewStorageService(primary, fallback), primary, fallback
}

// newTestPipeline builds a full SubmissionService on in-memory SQLite with
// fake object storage
func newTestPipeline(t *testing.T) (*SubmissionService, *gorm.DB) {
	db := SetupSQLiteTestDB(t)
	storage, _, _ := newTestStorage(false)
	buckets := BucketConfig{
		ProfileImages:     "test-profile-images",
		JobAttachments:    "test-job-attachments",
		ProviderDocuments: "test-provider-documents",
	}
	return NewSubmissionService(db, storage, buckets), db
}
