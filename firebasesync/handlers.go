package firebasesync

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/roadworks_backend/config"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"bitbucket.org/mmdatafocus/roadworks_backend/utils"
	"github.com/gin-gonic/gin"
)

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

func StatusHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := svc.GetLastSyncStatus(c.Request.Context())
		if err != nil {
			writeSyncError(c, "StatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func ImportHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := svc.SyncFromDocumentStore(manualRunContext(c))
		if err != nil {
			writeSyncError(c, "ImportHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func ExportHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := svc.SyncToDocumentStore(manualRunContext(c))
		if err != nil {
			writeSyncError(c, "ExportHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func UsersHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := svc.SyncUsers(manualRunContext(c))
		if err != nil {
			writeSyncError(c, "UsersHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func SyncAllHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := svc.SyncAll(manualRunContext(c))
		if err != nil {
			writeSyncError(c, "SyncAllHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func SyncHistoryHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		items, err := svc.ListRuns(c.Request.Context(), limit)
		if err != nil {
			writeSyncError(c, "SyncHistoryHandler", err)
			return
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		run, err := svc.GetRun(c.Request.Context(), uint(id))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			writeSyncError(c, "SyncRunDetailHandler", err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// manualRunContext tags the run with the console user who triggered it.
func manualRunContext(c *gin.Context) context.Context {
	return utils.SetTriggeredByInContext(c.Request.Context(), models.SyncTriggeredManual)
}

func writeSyncError(c *gin.Context, funcName string, err error) {
	switch {
	case errors.Is(err, ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "firebasesync", funcName, c.Request.URL.Path, cid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
