package models

import "time"

const (
	SyncStageImport = "from_firebase"
	SyncStageExport = "to_firebase"
	SyncStageUsers  = "users"
	SyncStageAll    = "all"
)

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredCLI    = "cli"
	SyncTriggeredSystem = "system"
)

type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	Stage         string     `gorm:"index;size:20;not null" json:"stage"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	TriggeredById *int       `json:"triggered_by_id"`
	CorrelationId string     `gorm:"size:64" json:"correlation_id"`
	StatsJSON     []byte     `gorm:"type:json" json:"stats"`
	RecordsSynced int        `json:"records_synced"`
	ErrorCount    int        `json:"error_count"`
	Message       string     `gorm:"type:text" json:"message"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncError struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	SyncRunId  uint      `gorm:"index;not null" json:"sync_run_id"`
	Stage      string    `gorm:"size:20" json:"stage"`
	EntityType string    `gorm:"size:50" json:"entity_type"`
	ExternalId string    `gorm:"size:128" json:"external_id"`
	Message    string    `gorm:"type:text" json:"message"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
