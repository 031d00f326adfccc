package firebasesync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/roadworks_backend/docstore"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
)

const exportSelect = `r.id, r.titre, r.description, r.latitude, r.longitude, r.surface_m2, r.budget,
r.date_signalement, r.status_id, r.company_id, r.user_id, r.firebase_id, r.synced_at,
s.code AS status_code, s.label AS status_label,
c.name AS company_name, c.contact AS company_contact,
u.email AS reporter_email`

type pendingWrite struct {
	reportId   int
	firebaseId string
	created    bool
}

// exportReports mirrors every report into Firestore. Reports already linked are merged,
// the others get a new document whose id is written back once the batch is committed.
func (s *Service) exportReports(ctx context.Context, rec *runRecorder) (*ExportResult, error) {
	result := newExportResult()

	var rows []models.ReportRow
	err := s.db.WithContext(ctx).
		Table("reports AS r").
		Select(exportSelect).
		Joins("LEFT JOIN report_statuses s ON s.id = r.status_id").
		Joins("LEFT JOIN companies c ON c.id = r.company_id").
		Joins("LEFT JOIN users u ON u.id = r.user_id").
		Order("r.date_signalement DESC, r.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load reports: %v", ErrRelationalUnavailable, err)
	}
	result.Total = len(rows)

	batch := s.docs.Batch()
	pending := make([]pendingWrite, 0, s.settings.BatchSize)
	collection := s.settings.ReportsCollection

	flush := func() {
		if batch.Len() == 0 {
			return
		}
		s.flushExport(ctx, rec, batch, pending, result)
		batch = s.docs.Batch()
		pending = pending[:0]
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := s.now().UTC()
		data := ToDocument(row, now)
		if row.FirebaseId != nil && *row.FirebaseId != "" {
			batch.Merge(collection, *row.FirebaseId, data)
			pending = append(pending, pendingWrite{reportId: row.ID, firebaseId: *row.FirebaseId})
		} else {
			id := s.docs.NewID(collection)
			data[FieldCreatedAt] = now
			batch.Set(collection, id, data)
			pending = append(pending, pendingWrite{reportId: row.ID, firebaseId: id, created: true})
		}
		if batch.Len() >= s.settings.BatchSize {
			flush()
		}
	}
	flush()

	meta := map[string]any{
		"timestamp": s.now().UTC(),
		"exported":  result.Exported,
		"updated":   result.Updated,
		"total":     result.Total,
	}
	if err := s.docs.Set(ctx, s.settings.MetadataCollection, lastSyncDocId, meta); err != nil {
		rec.recordError(ctx, models.SyncStageExport, "sync_metadata", lastSyncDocId, err)
		result.Errors = append(result.Errors, ItemError{ID: lastSyncDocId, Error: err.Error()})
	}

	rec.addStats(result.Exported+result.Updated, map[string]int{
		"reports_exported": result.Exported,
		"reports_updated":  result.Updated,
		"reports_errors":   len(result.Errors),
	})
	return result, nil
}

// flushExport commits one batch then records the outcome of each write.
// A failed commit turns every pending write into an error; nothing is written back.
func (s *Service) flushExport(ctx context.Context, rec *runRecorder, batch docstore.Batch, pending []pendingWrite, result *ExportResult) {
	if err := batch.Commit(ctx); err != nil {
		for _, p := range pending {
			id := strconv.Itoa(p.reportId)
			rec.recordError(ctx, models.SyncStageExport, "report", id, fmt.Errorf("commit batch: %w", err))
			result.Errors = append(result.Errors, ItemError{ID: id, Error: err.Error()})
			result.Details = append(result.Details, ItemDetail{ID: id, Action: ActionError, ReportId: p.reportId})
		}
		return
	}

	syncedAt := s.now().UTC()
	updatedIds := make([]int, 0, len(pending))
	for _, p := range pending {
		id := strconv.Itoa(p.reportId)
		detail := ItemDetail{ID: id, ReportId: p.reportId, FirebaseId: p.firebaseId}
		if !p.created {
			updatedIds = append(updatedIds, p.reportId)
			detail.Action = ActionUpdated
			result.Updated++
			result.Details = append(result.Details, detail)
			s.debugItem(models.SyncStageExport, detail)
			continue
		}

		if err := s.writeBackFirebaseId(ctx, p, syncedAt); err != nil {
			rec.recordError(ctx, models.SyncStageExport, "report", id, err)
			result.Errors = append(result.Errors, ItemError{ID: id, Error: err.Error()})
			detail.Action = ActionError
			result.Details = append(result.Details, detail)
			continue
		}
		detail.Action = ActionExported
		result.Exported++
		result.Details = append(result.Details, detail)
		s.debugItem(models.SyncStageExport, detail)
	}

	if len(updatedIds) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Report{}).
			Where("id IN ?", updatedIds).
			UpdateColumn("synced_at", syncedAt).Error; err != nil {
			rec.recordError(ctx, models.SyncStageExport, "report", "synced_at", err)
		}
	}
}

func (s *Service) writeBackFirebaseId(ctx context.Context, p pendingWrite, syncedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND (firebase_id IS NULL OR firebase_id = '')", p.reportId).
		UpdateColumns(map[string]interface{}{
			"firebase_id": p.firebaseId,
			"synced_at":   syncedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("write back firebase_id %s: %w", p.firebaseId, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("report %d was linked by another writer, document %s is orphaned", p.reportId, p.firebaseId)
	}
	return nil
}
