package firebasesync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"bitbucket.org/mmdatafocus/roadworks_backend/config"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"bitbucket.org/mmdatafocus/roadworks_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// runRecorder persists one sync_runs row and its sync_errors.
// Recording is best effort: a MySQL hiccup while writing bookkeeping must not
// fail the run itself, so failures are only logged.
type runRecorder struct {
	db     *gorm.DB
	logger *logrus.Logger
	run    models.SyncRun

	mu         sync.Mutex
	synced     int
	errorCount int
	stats      map[string]int
}

func (s *Service) startRun(ctx context.Context, stage string, correlationId string) *runRecorder {
	rec := &runRecorder{db: s.db, logger: s.logger, stats: map[string]int{}}

	now := s.now()
	triggeredBy, ok := utils.GetTriggeredByFromContext(ctx)
	if !ok || triggeredBy == "" {
		triggeredBy = models.SyncTriggeredSystem
	}
	rec.run = models.SyncRun{
		Stage:         stage,
		Status:        models.SyncRunStatusRunning,
		TriggeredBy:   triggeredBy,
		CorrelationId: correlationId,
		StartedAt:     &now,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId > 0 {
		rec.run.TriggeredById = &userId
	}
	if err := s.db.WithContext(ctx).Create(&rec.run).Error; err != nil {
		config.LogError(s.logger, "firebasesync", "startRun", "create sync run", stage, err)
		rec.run.ID = 0
	}
	return rec
}

func (r *runRecorder) recordError(ctx context.Context, stage string, entityType string, externalId string, err error) {
	r.mu.Lock()
	r.errorCount++
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"module":      "firebasesync",
		"stage":       stage,
		"run_id":      r.run.ID,
		"entity_type": entityType,
		"external_id": externalId,
	}).Warn(err.Error())

	if r.run.ID == 0 {
		return
	}
	errRec := models.SyncError{
		SyncRunId:  r.run.ID,
		Stage:      stage,
		EntityType: entityType,
		ExternalId: externalId,
		Message:    err.Error(),
	}
	if dbErr := r.db.WithContext(ctx).Create(&errRec).Error; dbErr != nil {
		config.LogError(r.logger, "firebasesync", "recordError", "create sync error", externalId, dbErr)
	}
}

func (r *runRecorder) addStats(synced int, stats map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced += synced
	for k, v := range stats {
		r.stats[k] += v
	}
}

func (r *runRecorder) finish(ctx context.Context, s *Service, runErr error) SyncCompletedEvent {
	finishedAt := s.now()
	status := models.SyncRunStatusSuccess
	message := ""
	if runErr != nil {
		status = models.SyncRunStatusFailed
		message = runErr.Error()
	} else if r.errorCount > 0 {
		status = models.SyncRunStatusPartial
	}
	var durationMs int64
	if r.run.StartedAt != nil {
		durationMs = finishedAt.Sub(*r.run.StartedAt).Milliseconds()
	}

	if r.run.ID != 0 {
		statsJSON, _ := json.Marshal(r.stats)
		if err := r.db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", r.run.ID).Updates(map[string]interface{}{
			"status":         status,
			"finished_at":    finishedAt,
			"duration_ms":    durationMs,
			"records_synced": r.synced,
			"error_count":    r.errorCount,
			"stats_json":     statsJSON,
			"message":        message,
		}).Error; err != nil {
			config.LogError(r.logger, "firebasesync", "finish", "update sync run", r.run.ID, err)
		}
	}

	return SyncCompletedEvent{
		RunId:         r.run.ID,
		Stage:         r.run.Stage,
		Status:        status,
		RecordsSynced: r.synced,
		ErrorCount:    r.errorCount,
		Stats:         r.stats,
		CorrelationId: r.run.CorrelationId,
		FinishedAt:    finishedAt,
	}
}

// ListRuns returns the most recent runs first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]SyncRunResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.SyncRun
	if err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	items := make([]SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, mapRunToResponse(run))
	}
	return items, nil
}

// GetRun returns utils.ErrorRecordNotFound for unknown ids.
func (s *Service) GetRun(ctx context.Context, id uint) (*SyncRunDetailResponse, error) {
	var run models.SyncRun
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	var errs []models.SyncError
	if err := s.db.WithContext(ctx).Where("sync_run_id = ?", run.ID).Order("id").Find(&errs).Error; err != nil {
		return nil, err
	}
	return &SyncRunDetailResponse{
		SyncRunResponse: mapRunToResponse(run),
		Errors:          mapErrors(errs),
	}, nil
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:            run.ID,
		Stage:         run.Stage,
		Status:        run.Status,
		TriggeredBy:   run.TriggeredBy,
		StartedAt:     utils.FormatTime(run.StartedAt),
		FinishedAt:    utils.FormatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
		RecordsSynced: run.RecordsSynced,
		ErrorCount:    run.ErrorCount,
		Message:       run.Message,
	}
}

func mapErrors(errorsList []models.SyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:         errItem.ID,
			Stage:      errItem.Stage,
			EntityType: errItem.EntityType,
			ExternalId: errItem.ExternalId,
			Message:    errItem.Message,
		})
	}
	return out
}
