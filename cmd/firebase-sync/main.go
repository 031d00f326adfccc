package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bitbucket.org/mmdatafocus/roadworks_backend/config"
	"bitbucket.org/mmdatafocus/roadworks_backend/firebasesync"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"bitbucket.org/mmdatafocus/roadworks_backend/utils"
	"github.com/google/uuid"
)

func main() {
	stage := flag.String("stage", "all", "Stage to run: all, import, export, users or status")
	migrate := flag.Bool("migrate", false, "Run AutoMigrate on the sync tables before syncing")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if *migrate {
		if err := models.MigrateTable(db); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}
	if config.RedisConfigured() {
		config.ConnectRedisWithRetry(ctx, 3)
	}

	svc := firebasesync.NewServiceFromEnv(ctx, db)
	ctx = utils.SetTriggeredByInContext(ctx, models.SyncTriggeredCLI)
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())

	var (
		result any
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(*stage)) {
	case "all":
		result, err = svc.SyncAll(ctx)
	case "import", "from-firebase":
		result, err = svc.SyncFromDocumentStore(ctx)
	case "export", "to-firebase":
		result, err = svc.SyncToDocumentStore(ctx)
	case "users":
		result, err = svc.SyncUsers(ctx)
	case "status":
		result, err = svc.GetLastSyncStatus(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown stage %q\n", *stage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		if errors.Is(err, firebasesync.ErrNotConfigured) || errors.Is(err, firebasesync.ErrSyncInProgress) {
			os.Exit(3)
		}
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
}
