package firebasesync

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/roadworks_backend/docstore"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"bitbucket.org/mmdatafocus/roadworks_backend/utils"
	"github.com/shopspring/decimal"
)

func testReferences() *References {
	return &References{
		StatusIdByCode:  map[string]int{"NOUVEAU": 1, "EN_COURS": 2, "TERMINE": 3},
		StatusCodeById:  map[int]string{1: "NOUVEAU", 2: "EN_COURS", 3: "TERMINE"},
		CompanyIdByName: map[string]int{"colas madagascar": 9},
		CompanyNameById: map[int]string{9: "Colas Madagascar"},
		NewStatusId:     1,
	}
}

func TestDecodeReportDocument(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		name    string
		data    map[string]any
		wantErr bool
		check   func(t *testing.T, d ReportDocument)
	}{
		{
			name: "numbers as strings",
			data: map[string]any{"title": "  Nid de poule ", "latitude": "-18.9", "longitude": 47.5, "budget": "1500,50"},
			check: func(t *testing.T, d ReportDocument) {
				if d.Title != "Nid de poule" {
					t.Fatalf("title = %q", d.Title)
				}
				if d.Latitude == nil || *d.Latitude != -18.9 {
					t.Fatalf("latitude = %v", d.Latitude)
				}
				if d.Budget == nil || *d.Budget != 1500.5 {
					t.Fatalf("budget = %v", d.Budget)
				}
				if d.Surface != nil {
					t.Fatalf("surface should be absent, got %v", *d.Surface)
				}
			},
		},
		{
			name: "creation time falls back to document metadata",
			data: map[string]any{"title": "x"},
			check: func(t *testing.T, d ReportDocument) {
				if d.CreatedAt == nil || !d.CreatedAt.Equal(created) {
					t.Fatalf("createdAt = %v", d.CreatedAt)
				}
			},
		},
		{
			name: "firebase json timestamp",
			data: map[string]any{"reportedAt": map[string]any{"_seconds": float64(1767225600), "_nanoseconds": float64(0)}},
			check: func(t *testing.T, d ReportDocument) {
				if d.ReportedAt == nil || d.ReportedAt.Unix() != 1767225600 {
					t.Fatalf("reportedAt = %v", d.ReportedAt)
				}
			},
		},
		{name: "latitude as bool", data: map[string]any{"latitude": true}, wantErr: true},
		{name: "latitude out of range", data: map[string]any{"latitude": 91.0}, wantErr: true},
		{name: "negative budget", data: map[string]any{"budget": -1}, wantErr: true},
		{name: "not a number", data: map[string]any{"surface": "beaucoup"}, wantErr: true},
		{name: "title not a string", data: map[string]any{"title": 12}, wantErr: true},
		{name: "bad date", data: map[string]any{"reportedAt": "hier"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := DecodeReportDocument(docstore.Document{ID: "doc1", Data: tc.data, CreateTime: created})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.check(t, d)
		})
	}
}

func TestToRelational_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := ToRelational(ReportDocument{ID: "abc"}, testReferences(), now)

	if r.Title != UntitledReport {
		t.Fatalf("title = %q", r.Title)
	}
	if r.Latitude != 0 || r.Longitude != 0 {
		t.Fatalf("coordinates = %v,%v", r.Latitude, r.Longitude)
	}
	if r.StatusId != 1 {
		t.Fatalf("status = %d, want new status", r.StatusId)
	}
	if !r.DateSignalement.Equal(now) {
		t.Fatalf("date = %v", r.DateSignalement)
	}
	if r.UserId != nil || r.CompanyId != nil {
		t.Fatalf("user/company should be unlinked")
	}
	if r.FirebaseId == nil || *r.FirebaseId != "abc" {
		t.Fatalf("firebase id = %v", r.FirebaseId)
	}
	if r.Budget.Valid || r.SurfaceM2.Valid {
		t.Fatalf("budget/surface should be NULL")
	}
}

func TestToRelational_ResolvesStatusAndCompany(t *testing.T) {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	doc := ReportDocument{
		ID:        "abc",
		Title:     "Route coupée",
		Status:    "en cours",
		Company:   "  COLAS   madagascar",
		Budget:    utils.Ptr(2500.0),
		CreatedAt: &created,
	}
	r := ToRelational(doc, testReferences(), time.Now())
	if r.StatusId != 2 {
		t.Fatalf("status = %d", r.StatusId)
	}
	if r.CompanyId == nil || *r.CompanyId != 9 {
		t.Fatalf("company = %v", r.CompanyId)
	}
	if !r.DateSignalement.Equal(created) {
		t.Fatalf("date = %v", r.DateSignalement)
	}
	if !r.Budget.Valid || !r.Budget.Decimal.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("budget = %v", r.Budget)
	}

	doc.Status = "SUSPENDU"
	if r := ToRelational(doc, testReferences(), time.Now()); r.StatusId != 1 {
		t.Fatalf("unknown status should fall back to new, got %d", r.StatusId)
	}
}

func TestToDocument(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := models.ReportRow{
		ID:              42,
		Title:           "Effondrement",
		SurfaceM2:       decimal.NewNullDecimal(decimal.RequireFromString("12.50")),
		DateSignalement: now.Add(-time.Hour),
		StatusLabel:     utils.Ptr("En cours"),
		StatusCode:      utils.Ptr("EN_COURS"),
	}
	data := ToDocument(row, now)

	if data[FieldSurface] != 12.5 {
		t.Fatalf("surface = %v (%T)", data[FieldSurface], data[FieldSurface])
	}
	for _, key := range []string{FieldBudget, FieldCompany, FieldCompanyContact, FieldReporterEmail} {
		v, ok := data[key]
		if !ok || v != nil {
			t.Fatalf("%s should be an explicit null, got %v (present=%v)", key, v, ok)
		}
	}
	if data[FieldStatusLabel] != "En cours" || data[FieldStatus] != "EN_COURS" {
		t.Fatalf("status fields = %v/%v", data[FieldStatus], data[FieldStatusLabel])
	}
	if data[FieldFromServer] != true {
		t.Fatalf("fromServer marker missing")
	}
	if ts, ok := data[FieldUpdatedAt].(time.Time); !ok || !ts.Equal(now) {
		t.Fatalf("updatedAt = %v", data[FieldUpdatedAt])
	}
	if data[FieldSqlId] != 42 {
		t.Fatalf("sqlId = %v", data[FieldSqlId])
	}
	if _, ok := data[FieldCreatedAt]; ok {
		t.Fatalf("createdAt must not be written by ToDocument")
	}
}

func TestNormalizeNumber(t *testing.T) {
	cases := []struct {
		in       string
		expected float64
	}{
		{"1500,50", 1500.5},
		{"1,5", 1.5},
		{"1,200.50", 1200.5},
		{"1.200,50", 1200.5},
		{"20,000", 20000},
		{"1,200,000", 1200000},
		{"1.200.000", 1200000},
		{"1 200,50", 1200.5},
		{"-18.91", -18.91},
	}
	for _, tc := range cases {
		got, err := floatField(map[string]any{"budget": tc.in}, "budget")
		if err != nil {
			t.Fatalf("floatField(%q) error: %v", tc.in, err)
		}
		if got == nil || *got != tc.expected {
			t.Fatalf("floatField(%q) expected %v, got %v", tc.in, tc.expected, got)
		}
	}
	if _, err := floatField(map[string]any{"budget": "1,2,3.4.5"}, "budget"); err == nil {
		t.Fatalf("expected an error for a malformed number")
	}
}
