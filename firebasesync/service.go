// Package firebasesync reconciles road-work reports and user accounts between the
// mobile app's Firestore database and the console's MySQL database.
//
// Import is a one-way ratchet: a Firestore report is inserted into MySQL once and
// never re-applied. Export mirrors every MySQL report into Firestore with merge
// semantics, so console-managed fields (status, company, budget) always win.
package firebasesync

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/roadworks_backend/config"
	"bitbucket.org/mmdatafocus/roadworks_backend/docstore"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"bitbucket.org/mmdatafocus/roadworks_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("roadworks/firebasesync")

const lastSyncDocId = "last_sync"

type Service struct {
	db        *gorm.DB
	docs      docstore.Store
	lock      RunLock
	publisher EventPublisher
	settings  config.SyncSettings
	logger    *logrus.Logger
	now       func() time.Time
	debug     bool
}

type Option func(*Service)

func WithRunLock(l RunLock) Option {
	return func(s *Service) { s.lock = l }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the engine. docs is nil when Firestore is not configured;
// every sync entry point then fails with ErrNotConfigured.
func NewService(db *gorm.DB, docs docstore.Store, settings config.SyncSettings, opts ...Option) *Service {
	s := &Service{
		db:        db,
		docs:      docs,
		lock:      NewLocalRunLock(),
		publisher: nopPublisher{},
		settings:  settings.Normalize(),
		logger:    config.GetLogger(),
		now:       time.Now,
		debug:     config.DebugEnabled(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAvailable reports whether the document store is configured.
func (s *Service) IsAvailable() bool {
	return s.docs != nil
}

func (s *Service) GetLastSyncStatus(ctx context.Context) (*LastSyncStatus, error) {
	if !s.IsAvailable() {
		return &LastSyncStatus{Available: false, Message: "Firebase is not configured"}, nil
	}
	doc, err := s.docs.Get(ctx, s.settings.MetadataCollection, lastSyncDocId)
	if errors.Is(err, docstore.ErrNotFound) {
		return &LastSyncStatus{Available: true, Message: "No sync has been run yet"}, nil
	}
	if err != nil {
		return nil, err
	}
	meta := decodeSyncMetadata(doc.Data)
	return &LastSyncStatus{Available: true, LastSync: &meta}, nil
}

func (s *Service) SyncFromDocumentStore(ctx context.Context) (*ImportResult, error) {
	if !s.IsAvailable() {
		return nil, ErrNotConfigured
	}
	var result *ImportResult
	err := s.withRun(ctx, models.SyncStageImport, func(ctx context.Context, rec *runRecorder) error {
		r, err := s.importReports(ctx, rec)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) SyncToDocumentStore(ctx context.Context) (*ExportResult, error) {
	if !s.IsAvailable() {
		return nil, ErrNotConfigured
	}
	var result *ExportResult
	err := s.withRun(ctx, models.SyncStageExport, func(ctx context.Context, rec *runRecorder) error {
		r, err := s.exportReports(ctx, rec)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) SyncUsers(ctx context.Context) (*UserSyncResult, error) {
	if !s.IsAvailable() {
		return nil, ErrNotConfigured
	}
	var result *UserSyncResult
	err := s.withRun(ctx, models.SyncStageUsers, func(ctx context.Context, rec *runRecorder) error {
		r, err := s.reconcileUsers(ctx, rec)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SyncAll runs import, export and user reconciliation in that order under one lease.
// A stage that fails as a whole is reported in its slot; the next stages still run.
func (s *Service) SyncAll(ctx context.Context) (*SyncAllResult, error) {
	if !s.IsAvailable() {
		return nil, ErrNotConfigured
	}
	result := &SyncAllResult{}
	err := s.withRun(ctx, models.SyncStageAll, func(ctx context.Context, rec *runRecorder) error {
		if r, err := s.importReports(ctx, rec); err != nil {
			rec.recordError(ctx, models.SyncStageImport, "stage", models.SyncStageImport, err)
			result.FromStore = stageFailed[ImportResult](err)
		} else {
			result.FromStore = stageOK(r)
		}

		if r, err := s.exportReports(ctx, rec); err != nil {
			rec.recordError(ctx, models.SyncStageExport, "stage", models.SyncStageExport, err)
			result.ToStore = stageFailed[ExportResult](err)
		} else {
			result.ToStore = stageOK(r)
		}

		if r, err := s.reconcileUsers(ctx, rec); err != nil {
			rec.recordError(ctx, models.SyncStageUsers, "stage", models.SyncStageUsers, err)
			result.Users = stageFailed[UserSyncResult](err)
		} else {
			result.Users = stageOK(r)
		}

		result.Timestamp = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withRun takes the run lease, records the run and publishes its outcome.
func (s *Service) withRun(ctx context.Context, stage string, fn func(ctx context.Context, rec *runRecorder) error) error {
	lease, err := s.lock.Acquire(ctx, runLockKey, s.settings.LockTTL, s.settings.LockWait)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			config.LogError(s.logger, "firebasesync", "withRun", "release run lock", stage, releaseErr)
		}
	}()

	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
	}

	ctx, span := tracer.Start(ctx, "firebasesync."+stage, trace.WithAttributes(attribute.String("sync.stage", stage)))
	defer span.End()

	rec := s.startRun(ctx, stage, correlationId)
	span.SetAttributes(attribute.Int("sync.run_id", int(rec.run.ID)))
	startedBy, _ := utils.GetUserEmailFromContext(ctx)
	s.logger.WithFields(logrus.Fields{
		"module":         "firebasesync",
		"stage":          stage,
		"run_id":         rec.run.ID,
		"triggered_by":   rec.run.TriggeredBy,
		"user_email":     startedBy,
		"correlation_id": correlationId,
	}).Info("sync run started")

	runErr := fn(ctx, rec)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	event := rec.finish(context.WithoutCancel(ctx), s, runErr)
	s.logger.WithFields(logrus.Fields{
		"module":         "firebasesync",
		"stage":          stage,
		"run_id":         event.RunId,
		"status":         event.Status,
		"records_synced": event.RecordsSynced,
		"error_count":    event.ErrorCount,
		"correlation_id": correlationId,
	}).Info("sync run finished")

	if pubErr := s.publisher.Publish(context.WithoutCancel(ctx), event); pubErr != nil {
		config.LogError(s.logger, "firebasesync", "withRun", "publish sync completed event", event.RunId, pubErr)
	}
	return runErr
}

func decodeSyncMetadata(data map[string]any) SyncMetadata {
	var meta SyncMetadata
	if ts, err := timeField(data, "timestamp"); err == nil && ts != nil {
		meta.Timestamp = *ts
	}
	meta.Exported = intValue(data["exported"])
	meta.Updated = intValue(data["updated"])
	meta.Total = intValue(data["total"])
	return meta
}

func intValue(raw any) int {
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (s *Service) debugItem(stage string, detail ItemDetail) {
	if !s.debug {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"module":      "firebasesync",
		"stage":       stage,
		"id":          detail.ID,
		"action":      detail.Action,
		"report_id":   detail.ReportId,
		"user_id":     detail.UserId,
		"firebase_id": detail.FirebaseId,
	}).Debug("sync item")
}
