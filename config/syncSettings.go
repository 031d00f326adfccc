package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// MaxBatchSize is the per-commit operation limit of a Firestore write batch.
const MaxBatchSize = 500

// SyncSettings are the knobs of the Firestore <-> MySQL reconciliation.
type SyncSettings struct {
	BatchSize          int
	Workers            int
	LockTTL            time.Duration
	LockWait           time.Duration
	DefaultRole        string
	NewStatusCode      string
	PlaceholderSecret  string
	ReportsCollection  string
	UsersCollection    string
	MetadataCollection string
}

func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		BatchSize:          MaxBatchSize,
		Workers:            4,
		LockTTL:            5 * time.Minute,
		DefaultRole:        "USER",
		NewStatusCode:      "NOUVEAU",
		ReportsCollection:  "reports",
		UsersCollection:    "users",
		MetadataCollection: "sync_metadata",
	}
}

// LoadSyncSettings reads SYNC_* env vars on top of DefaultSyncSettings.
func LoadSyncSettings() SyncSettings {
	s := DefaultSyncSettings()
	s.BatchSize = intFromEnv("SYNC_BATCH_SIZE", s.BatchSize)
	s.Workers = intFromEnv("SYNC_WORKERS", s.Workers)
	s.LockTTL = time.Duration(intFromEnv("SYNC_LOCK_TTL_SECONDS", int(s.LockTTL/time.Second))) * time.Second
	s.LockWait = time.Duration(intFromEnv("SYNC_LOCK_WAIT_SECONDS", 0)) * time.Second
	s.DefaultRole = stringFromEnv("SYNC_DEFAULT_ROLE", s.DefaultRole)
	s.NewStatusCode = stringFromEnv("SYNC_NEW_STATUS_CODE", s.NewStatusCode)
	s.PlaceholderSecret = stringFromEnv("SYNC_PLACEHOLDER_SECRET", s.PlaceholderSecret)
	s.ReportsCollection = stringFromEnv("SYNC_REPORTS_COLLECTION", s.ReportsCollection)
	s.UsersCollection = stringFromEnv("SYNC_USERS_COLLECTION", s.UsersCollection)
	s.MetadataCollection = stringFromEnv("SYNC_METADATA_COLLECTION", s.MetadataCollection)
	if s.PlaceholderSecret == "" {
		GetLogger().WithFields(logrus.Fields{
			"module": "config",
			"field":  "SYNC_PLACEHOLDER_SECRET",
		}).Warn("SYNC_PLACEHOLDER_SECRET is empty; placeholder passwords of imported users can be derived from their Firebase uid")
	}
	return s.Normalize()
}

// Normalize clamps out-of-range values back to something usable.
func (s SyncSettings) Normalize() SyncSettings {
	if s.BatchSize <= 0 || s.BatchSize > MaxBatchSize {
		s.BatchSize = MaxBatchSize
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}
	if s.LockTTL <= 0 {
		s.LockTTL = 5 * time.Minute
	}
	if s.LockWait < 0 {
		s.LockWait = 0
	}
	return s
}

// DebugEnabled toggles verbose per-item sync logging.
//
// Set via env:
// - SYNC_DEBUG=true
func DebugEnabled() bool {
	return envBoolDefault("SYNC_DEBUG", false)
}
