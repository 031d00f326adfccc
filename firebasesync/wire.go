package firebasesync

import (
	"context"

	"bitbucket.org/mmdatafocus/roadworks_backend/config"
	"bitbucket.org/mmdatafocus/roadworks_backend/docstore"
	"gorm.io/gorm"
)

// NewServiceFromEnv builds the service from the environment: Firestore when credentials
// are present, the Redis lock when Redis is connected, Pub/Sub events when a topic is set.
func NewServiceFromEnv(ctx context.Context, db *gorm.DB) *Service {
	logger := config.GetLogger()

	var docs docstore.Store
	if config.FirestoreConfigured() {
		client, err := config.GetFirestoreClient(ctx)
		if err != nil {
			config.LogError(logger, "firebasesync", "NewServiceFromEnv", "firestore client", nil, err)
		} else {
			docs = docstore.NewFirestoreStore(client)
		}
	}

	opts := []Option{
		WithLogger(logger),
		WithPublisher(NewPubSubPublisher(config.SyncEventsTopic())),
	}
	if locker := config.GetRedisLock(); locker != nil {
		opts = append(opts, WithRunLock(NewRedisRunLock(locker, logger)))
	}
	return NewService(db, docs, config.LoadSyncSettings(), opts...)
}
