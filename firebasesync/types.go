package firebasesync

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotConfigured means no Firestore credentials were provided; callers answer 503.
	ErrNotConfigured = errors.New("firebase is not configured")
	// ErrSyncInProgress means another run holds the run lock.
	ErrSyncInProgress = errors.New("a sync run is already in progress")
	// ErrRelationalUnavailable wraps failures of the stage-level MySQL reads.
	ErrRelationalUnavailable = errors.New("relational store unavailable")
)

const (
	ActionImported = "imported"
	ActionSkipped  = "skipped"
	ActionExported = "exported"
	ActionUpdated  = "updated"
	ActionCreated  = "created"
	ActionLinked   = "linked"
	ActionMirrored = "mirrored"
	ActionError    = "error"
)

// ItemError is one failed document, row or user. ID is the identifier on the
// side being read: a Firestore document ID for imports, a report or user ID otherwise.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type ItemDetail struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	ReportId   int    `json:"reportId,omitempty"`
	UserId     int    `json:"userId,omitempty"`
	FirebaseId string `json:"firebaseId,omitempty"`
}

type ImportResult struct {
	Imported int          `json:"imported"`
	Updated  int          `json:"updated"`
	Skipped  int          `json:"skipped"`
	Errors   []ItemError  `json:"errors"`
	Details  []ItemDetail `json:"details"`
	Message  string       `json:"message,omitempty"`
}

type ExportResult struct {
	Exported int          `json:"exported"`
	Updated  int          `json:"updated"`
	Total    int          `json:"total"`
	Errors   []ItemError  `json:"errors"`
	Details  []ItemDetail `json:"details"`
}

type UserSyncResult struct {
	Imported int          `json:"imported"`
	Exported int          `json:"exported"`
	Linked   int          `json:"linked"`
	Errors   []ItemError  `json:"errors"`
	Details  []ItemDetail `json:"details"`
}

func newImportResult() *ImportResult {
	return &ImportResult{Errors: []ItemError{}, Details: []ItemDetail{}}
}

func newExportResult() *ExportResult {
	return &ExportResult{Errors: []ItemError{}, Details: []ItemDetail{}}
}

func newUserSyncResult() *UserSyncResult {
	return &UserSyncResult{Errors: []ItemError{}, Details: []ItemDetail{}}
}

// StageResult is one slot of SyncAllResult: either the stage's result or,
// when the stage failed as a whole, {"error": message}.
type StageResult[T any] struct {
	Result *T
	Err    string
}

func stageOK[T any](r *T) StageResult[T] {
	return StageResult[T]{Result: r}
}

func stageFailed[T any](err error) StageResult[T] {
	return StageResult[T]{Err: err.Error()}
}

func (s StageResult[T]) Failed() bool {
	return s.Err != ""
}

func (s StageResult[T]) MarshalJSON() ([]byte, error) {
	if s.Err != "" {
		return json.Marshal(map[string]string{"error": s.Err})
	}
	return json.Marshal(s.Result)
}

type SyncAllResult struct {
	FromStore StageResult[ImportResult]   `json:"fromStore"`
	ToStore   StageResult[ExportResult]   `json:"toStore"`
	Users     StageResult[UserSyncResult] `json:"users"`
	Timestamp time.Time                   `json:"timestamp"`
}

// SyncMetadata is the singleton the export overwrites after every run.
type SyncMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Exported  int       `json:"exported"`
	Updated   int       `json:"updated"`
	Total     int       `json:"total"`
}

type LastSyncStatus struct {
	Available bool          `json:"available"`
	LastSync  *SyncMetadata `json:"lastSync"`
	Message   string        `json:"message,omitempty"`
}

// SyncCompletedEvent is published once per run for downstream consumers
// (notification dispatch, dashboards).
type SyncCompletedEvent struct {
	RunId         uint           `json:"run_id"`
	Stage         string         `json:"stage"`
	Status        string         `json:"status"`
	RecordsSynced int            `json:"records_synced"`
	ErrorCount    int            `json:"error_count"`
	Stats         map[string]int `json:"stats"`
	CorrelationId string         `json:"correlation_id"`
	FinishedAt    time.Time      `json:"finished_at"`
}

type SyncRunResponse struct {
	ID            uint    `json:"id"`
	Stage         string  `json:"stage"`
	Status        string  `json:"status"`
	TriggeredBy   string  `json:"triggeredBy"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
	DurationMs    int64   `json:"durationMs"`
	RecordsSynced int     `json:"recordsSynced"`
	ErrorCount    int     `json:"errorCount"`
	Message       string  `json:"message,omitempty"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	Stage      string `json:"stage"`
	EntityType string `json:"entityType"`
	ExternalId string `json:"externalId"`
	Message    string `json:"message"`
}
