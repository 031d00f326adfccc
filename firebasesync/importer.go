package firebasesync

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/roadworks_backend/docstore"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const importHistoryComment = "Imported from Firebase"

type importOutcome struct {
	detail ItemDetail
	err    error
}

// importReports inserts every Firestore report that has no MySQL row yet.
// Documents already linked through firebase_id are skipped, never re-applied.
func (s *Service) importReports(ctx context.Context, rec *runRecorder) (*ImportResult, error) {
	result := newImportResult()

	refs, err := LoadReferences(ctx, s.db, s.settings.NewStatusCode)
	if err != nil {
		return nil, err
	}
	docs, err := s.docs.All(ctx, s.settings.ReportsCollection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.settings.ReportsCollection, err)
	}
	if len(docs) == 0 {
		result.Message = "No reports found in Firebase"
		return result, nil
	}

	outcomes := make([]importOutcome, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Workers)
	for i := range docs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = importOutcome{detail: ItemDetail{ID: docs[i].ID}, err: err}
				return nil
			}
			outcomes[i] = s.importOne(gctx, docs[i], refs)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, out := range outcomes {
		if out.err != nil {
			result.Errors = append(result.Errors, ItemError{ID: out.detail.ID, Error: out.err.Error()})
			result.Details = append(result.Details, ItemDetail{ID: out.detail.ID, Action: ActionError})
			rec.recordError(ctx, models.SyncStageImport, "report", out.detail.ID, out.err)
			continue
		}
		switch out.detail.Action {
		case ActionImported:
			result.Imported++
		case ActionSkipped:
			result.Skipped++
		}
		result.Details = append(result.Details, out.detail)
		s.debugItem(models.SyncStageImport, out.detail)
	}

	result.Message = fmt.Sprintf("%d imported, %d skipped, %d errors", result.Imported, result.Skipped, len(result.Errors))
	rec.addStats(result.Imported, map[string]int{
		"reports_imported": result.Imported,
		"reports_skipped":  result.Skipped,
		"reports_errors":   len(result.Errors),
	})
	return result, nil
}

func (s *Service) importOne(ctx context.Context, doc docstore.Document, refs *References) importOutcome {
	detail := ItemDetail{ID: doc.ID, FirebaseId: doc.ID}

	var existing models.Report
	err := s.db.WithContext(ctx).Select("id").Where("firebase_id = ?", doc.ID).Take(&existing).Error
	if err == nil {
		detail.Action = ActionSkipped
		detail.ReportId = existing.ID
		return importOutcome{detail: detail}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return importOutcome{detail: detail, err: fmt.Errorf("lookup firebase_id: %w", err)}
	}

	decoded, err := DecodeReportDocument(doc)
	if err != nil {
		return importOutcome{detail: detail, err: err}
	}
	now := s.now().UTC()
	report := ToRelational(decoded, refs, now)
	report.SyncedAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&report).Error; err != nil {
			return err
		}
		return tx.Create(&models.ReportStatusHistory{
			ReportId:  report.ID,
			StatusId:  report.StatusId,
			ChangedAt: report.DateSignalement,
			Comment:   importHistoryComment,
		}).Error
	})
	if err != nil {
		return importOutcome{detail: detail, err: fmt.Errorf("insert report: %w", err)}
	}

	detail.Action = ActionImported
	detail.ReportId = report.ID
	return importOutcome{detail: detail}
}
