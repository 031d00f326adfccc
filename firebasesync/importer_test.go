package firebasesync

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/roadworks_backend/models"
)

func TestSyncFromDocumentStore_EmptyCollection(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.SyncFromDocumentStore(context.Background())
	if err != nil {
		t.Fatalf("SyncFromDocumentStore: %v", err)
	}
	if res.Imported != 0 || res.Updated != 0 || res.Errors == nil || len(res.Errors) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Message == "" {
		t.Fatalf("expected a message for an empty collection")
	}
}

func TestSyncFromDocumentStore_ImportsOnceAndIsolatesErrors(t *testing.T) {
	f := newFixture(t)
	f.putDoc(t, "reports", "a-valid", map[string]any{
		"title": "Nid de poule", "latitude": -18.9, "longitude": 47.5, "status": "en cours", "company": "Colas Madagascar",
	})
	f.putDoc(t, "reports", "b-broken", map[string]any{"title": "Mauvais", "latitude": "nord"})
	f.putDoc(t, "reports", "c-untitled", map[string]any{"budget": "300000"})

	res, err := f.svc.SyncFromDocumentStore(context.Background())
	if err != nil {
		t.Fatalf("SyncFromDocumentStore: %v", err)
	}
	if res.Imported != 2 || res.Updated != 0 {
		t.Fatalf("imported=%d updated=%d", res.Imported, res.Updated)
	}
	if len(res.Errors) != 1 || res.Errors[0].ID != "b-broken" {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if len(res.Details) != 3 || res.Details[0].ID != "a-valid" || res.Details[1].ID != "b-broken" || res.Details[2].ID != "c-untitled" {
		t.Fatalf("details not in enumeration order: %+v", res.Details)
	}

	var imported models.Report
	if err := f.db.Where("firebase_id = ?", "a-valid").Take(&imported).Error; err != nil {
		t.Fatalf("imported report missing: %v", err)
	}
	if imported.StatusId != f.statuses["EN_COURS"] || imported.CompanyId == nil || *imported.CompanyId != f.company.ID {
		t.Fatalf("status/company not resolved: %+v", imported)
	}
	if imported.UserId != nil {
		t.Fatalf("imported report should be unlinked from users")
	}

	var untitled models.Report
	if err := f.db.Where("firebase_id = ?", "c-untitled").Take(&untitled).Error; err != nil {
		t.Fatalf("untitled report missing: %v", err)
	}
	if untitled.Title != UntitledReport || untitled.StatusId != f.statuses["NOUVEAU"] {
		t.Fatalf("defaults not applied: %+v", untitled)
	}

	var histories []models.ReportStatusHistory
	if err := f.db.Order("id").Find(&histories).Error; err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(histories) != 2 || histories[0].ReportId != imported.ID || histories[0].StatusId != imported.StatusId {
		t.Fatalf("histories = %+v", histories)
	}

	var run models.SyncRun
	if err := f.db.Order("id desc").Take(&run).Error; err != nil {
		t.Fatalf("sync run: %v", err)
	}
	if run.Stage != models.SyncStageImport || run.Status != models.SyncRunStatusPartial || run.ErrorCount != 1 || run.RecordsSynced != 2 {
		t.Fatalf("run = %+v", run)
	}
	if n := f.countRows(t, &models.SyncError{}); n != 1 {
		t.Fatalf("sync_errors = %d", n)
	}
}

func TestSyncFromDocumentStore_IsARatchet(t *testing.T) {
	f := newFixture(t)
	f.putDoc(t, "reports", "doc-1", map[string]any{"title": "Avant", "status": "nouveau"})

	if _, err := f.svc.SyncFromDocumentStore(context.Background()); err != nil {
		t.Fatalf("first import: %v", err)
	}
	// the mobile client edits the document after it was imported
	f.putDoc(t, "reports", "doc-1", map[string]any{"title": "Après", "status": "termine"})

	res, err := f.svc.SyncFromDocumentStore(context.Background())
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if res.Imported != 0 || res.Skipped != 1 || len(res.Errors) != 0 {
		t.Fatalf("second run = %+v", res)
	}
	if n := f.countRows(t, &models.Report{}); n != 1 {
		t.Fatalf("reports = %d, want 1", n)
	}
	var r models.Report
	if err := f.db.Take(&r).Error; err != nil {
		t.Fatalf("take: %v", err)
	}
	if r.Title != "Avant" || r.StatusId != f.statuses["NOUVEAU"] {
		t.Fatalf("imported report was re-applied: %+v", r)
	}
	if n := f.countRows(t, &models.ReportStatusHistory{}); n != 1 {
		t.Fatalf("histories = %d, want 1", n)
	}
}

func TestSyncFromDocumentStore_SingleWorker(t *testing.T) {
	f := newFixture(t)
	f.svc.settings.Workers = 1
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		f.putDoc(t, "reports", id, map[string]any{"title": id})
	}
	res, err := f.svc.SyncFromDocumentStore(context.Background())
	if err != nil {
		t.Fatalf("SyncFromDocumentStore: %v", err)
	}
	if res.Imported != 5 {
		t.Fatalf("imported = %d", res.Imported)
	}
	for i, d := range res.Details {
		if want := []string{"r1", "r2", "r3", "r4", "r5"}[i]; d.ID != want || d.Action != ActionImported {
			t.Fatalf("detail %d = %+v", i, d)
		}
	}
}
