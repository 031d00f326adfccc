package firebasesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/roadworks_backend/config"
	"bitbucket.org/mmdatafocus/roadworks_backend/docstore"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	docs     *docstore.MemoryStore
	svc      *Service
	statuses map[string]int
	company  models.Company
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gormConfig := config.GormConfig()
	gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db, docs: docstore.NewMemoryStore(), statuses: map[string]int{}}

	for _, st := range []models.ReportStatus{
		{Code: "NOUVEAU", Label: "Nouveau"},
		{Code: "EN_COURS", Label: "En cours"},
		{Code: "TERMINE", Label: "Terminé"},
	} {
		st := st
		if err := db.Create(&st).Error; err != nil {
			t.Fatalf("seed status: %v", err)
		}
		f.statuses[st.Code] = st.ID
	}
	f.company = models.Company{Name: "Colas Madagascar", Contact: "034 00 000 00"}
	if err := db.Create(&f.company).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}

	settings := config.DefaultSyncSettings()
	settings.PlaceholderSecret = "test-secret"
	base := []Option{WithLogger(quietLogger()), WithClock(func() time.Time { return fixedNow })}
	f.svc = NewService(db, f.docs, settings, append(base, opts...)...)
	return f
}

func (f *fixture) putDoc(t *testing.T, collection string, id string, data map[string]any) {
	t.Helper()
	if err := f.docs.Set(context.Background(), collection, id, data); err != nil {
		t.Fatalf("put doc: %v", err)
	}
}

func (f *fixture) insertReport(t *testing.T, title string, firebaseId *string, budget *float64) models.Report {
	t.Helper()
	r := models.Report{
		Title:           title,
		Latitude:        -18.91,
		Longitude:       47.52,
		DateSignalement: fixedNow.Add(-time.Hour),
		StatusId:        f.statuses["EN_COURS"],
		CompanyId:       &f.company.ID,
		FirebaseId:      firebaseId,
	}
	if budget != nil {
		r.Budget = decimal.NewNullDecimal(decimal.NewFromFloat(*budget))
	}
	if err := f.db.Create(&r).Error; err != nil {
		t.Fatalf("insert report: %v", err)
	}
	return r
}

func (f *fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// failingStore fails every collection scan.
type failingStore struct {
	docstore.Store
	err error
}

func (s failingStore) All(context.Context, string) ([]docstore.Document, error) {
	return nil, s.err
}

var errStoreDown = errors.New("firestore unavailable")
