package config

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

var (
	firestoreClient   *firestore.Client
	firestoreClientMu sync.Mutex
)

func getFirestoreProjectID() string {
	if v := strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID")); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT"))
}

// FirestoreConfigured is the availability probe for the document store:
// a project id plus some form of credentials must be present.
func FirestoreConfigured() bool {
	if getFirestoreProjectID() == "" {
		return false
	}
	if os.Getenv("FIREBASE_CREDENTIALS_JSON") != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		return true
	}
	// Cloud Run uses the service account through Application Default Credentials.
	return envBoolDefault("FIREBASE_USE_ADC", false)
}

// GetFirestoreClient returns the shared Firestore client, creating it on first use.
func GetFirestoreClient(ctx context.Context) (*firestore.Client, error) {
	firestoreClientMu.Lock()
	defer firestoreClientMu.Unlock()
	if firestoreClient != nil {
		return firestoreClient, nil
	}
	if !FirestoreConfigured() {
		return nil, errors.New("FIREBASE_PROJECT_ID/credentials not set")
	}

	projectID := getFirestoreProjectID()
	var opts []option.ClientOption
	if credJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		c, err := firestore.NewClient(ctx, projectID, opts...)
		if err == nil {
			firestoreClient = c
			log.Printf("firestore client ready (project_id=%s attempt=%d)", projectID, attempt)
			return c, nil
		}
		lastErr = err
		log.Printf("failed to init firestore client (project_id=%s attempt=%d): %v", projectID, attempt, err)
		time.Sleep(time.Second * time.Duration(attempt))
	}
	return nil, lastErr
}
