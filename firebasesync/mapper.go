package firebasesync

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/roadworks_backend/docstore"
	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"bitbucket.org/mmdatafocus/roadworks_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// UntitledReport replaces a missing title on import.
const UntitledReport = "Signalement sans titre"

// Field names of a report document in Firestore.
const (
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldLatitude       = "latitude"
	FieldLongitude      = "longitude"
	FieldSurface        = "surface"
	FieldBudget         = "budget"
	FieldStatus         = "status"
	FieldStatusLabel    = "statusLabel"
	FieldCompany        = "company"
	FieldCompanyContact = "companyContact"
	FieldReporterEmail  = "reporterEmail"
	FieldReportedAt     = "reportedAt"
	FieldCreatedAt      = "createdAt"
	FieldUpdatedAt      = "updatedAt"
	FieldSqlId          = "sqlId"
	FieldFromServer     = "fromServer"
)

var validate = validator.New()

// ReportDocument is a Firestore report after decoding. Optional values are pointers:
// nil means the field was absent or null in the document.
type ReportDocument struct {
	ID            string     `validate:"required"`
	Title         string     `validate:"max=255"`
	Description   string
	Latitude      *float64   `validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64   `validate:"omitempty,gte=-180,lte=180"`
	Surface       *float64   `validate:"omitempty,gte=0"`
	Budget        *float64   `validate:"omitempty,gte=0"`
	Status        string
	Company       string
	ReporterEmail string
	ReportedAt    *time.Time
	CreatedAt     *time.Time
}

// DecodeReportDocument turns the schema-less document into a ReportDocument.
// Fields of the wrong type are rejected instead of silently coerced.
func DecodeReportDocument(doc docstore.Document) (ReportDocument, error) {
	out := ReportDocument{ID: doc.ID}
	data := doc.Data

	var err error
	if out.Title, err = stringField(data, FieldTitle); err != nil {
		return out, err
	}
	if out.Description, err = stringField(data, FieldDescription); err != nil {
		return out, err
	}
	if out.Status, err = stringField(data, FieldStatus); err != nil {
		return out, err
	}
	if out.Company, err = stringField(data, FieldCompany); err != nil {
		return out, err
	}
	if out.ReporterEmail, err = stringField(data, FieldReporterEmail); err != nil {
		return out, err
	}
	if out.Latitude, err = floatField(data, FieldLatitude); err != nil {
		return out, err
	}
	if out.Longitude, err = floatField(data, FieldLongitude); err != nil {
		return out, err
	}
	if out.Surface, err = floatField(data, FieldSurface); err != nil {
		return out, err
	}
	if out.Budget, err = floatField(data, FieldBudget); err != nil {
		return out, err
	}
	if out.ReportedAt, err = timeField(data, FieldReportedAt); err != nil {
		return out, err
	}
	if out.CreatedAt, err = timeField(data, FieldCreatedAt); err != nil {
		return out, err
	}
	if out.CreatedAt == nil && !doc.CreateTime.IsZero() {
		t := doc.CreateTime
		out.CreatedAt = &t
	}

	out.Title = strings.TrimSpace(out.Title)
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("invalid report document: %w", err)
	}
	return out, nil
}

// ToRelational maps a decoded document onto a new Report row.
// UserId stays nil: imported reports are unlinked until the console links them.
func ToRelational(doc ReportDocument, refs *References, now time.Time) models.Report {
	title := doc.Title
	if title == "" {
		title = UntitledReport
	}

	statusId, ok := refs.StatusId(doc.Status)
	if !ok {
		statusId = refs.NewStatusId
	}

	reportedAt := now
	if doc.ReportedAt != nil {
		reportedAt = *doc.ReportedAt
	} else if doc.CreatedAt != nil {
		reportedAt = *doc.CreatedAt
	}

	firebaseId := doc.ID
	return models.Report{
		Title:           title,
		Description:     strings.TrimSpace(doc.Description),
		Latitude:        utils.DereferencePtr(doc.Latitude, 0),
		Longitude:       utils.DereferencePtr(doc.Longitude, 0),
		SurfaceM2:       nullDecimal(doc.Surface),
		Budget:          nullDecimal(doc.Budget),
		DateSignalement: reportedAt.UTC(),
		StatusId:        statusId,
		CompanyId:       refs.CompanyId(doc.Company),
		UserId:          nil,
		FirebaseId:      &firebaseId,
	}
}

// ToDocument renders a joined report row as the Firestore fields the export writes.
// NULL columns are written as explicit nulls so a merge clears stale values.
// createdAt is left to the caller: it must only be set on new documents.
func ToDocument(row models.ReportRow, now time.Time) map[string]any {
	return map[string]any{
		FieldTitle:          row.Title,
		FieldDescription:    row.Description,
		FieldLatitude:       row.Latitude,
		FieldLongitude:      row.Longitude,
		FieldSurface:        nullableFloat(row.SurfaceM2),
		FieldBudget:         nullableFloat(row.Budget),
		FieldStatus:         nullableString(row.StatusCode),
		FieldStatusLabel:    nullableString(row.StatusLabel),
		FieldCompany:        nullableString(row.CompanyName),
		FieldCompanyContact: nullableString(row.CompanyContact),
		FieldReporterEmail:  nullableString(row.ReporterEmail),
		FieldReportedAt:     row.DateSignalement.UTC(),
		FieldSqlId:          row.ID,
		FieldUpdatedAt:      now.UTC(),
		FieldFromServer:     true,
	}
}

func nullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}

func nullableFloat(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringField(data map[string]any, key string) (string, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", key, raw)
	}
	return s, nil
}

func floatField(data map[string]any, key string) (*float64, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		f = parsed
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(normalizeNumber(trimmed), 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: %q is not a number", key, v)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("field %q: expected number, got %T", key, raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("field %q: not a finite number", key)
	}
	return &f, nil
}

var groupSpaces = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

// normalizeNumber turns "1 200,50", "1.200,50" and "1,200.50" into "1200.50".
// With both separators present the last one is the decimal mark. A lone comma
// followed by exactly three digits ("20,000") groups thousands, otherwise it is
// a decimal comma ("1500,50"). Repeated separators always group thousands.
func normalizeNumber(s string) string {
	s = groupSpaces.Replace(s)
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

func timeField(data map[string]any, key string) (*time.Time, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case time.Time:
		if v.IsZero() {
			return nil, nil
		}
		return &v, nil
	case *time.Time:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("field %q: unrecognised date %q", key, v)
	case map[string]any:
		// Timestamps exported as JSON by the Firebase tooling: {"_seconds": .., "_nanoseconds": ..}
		secs, err := floatField(v, "_seconds")
		if err != nil || secs == nil {
			return nil, fmt.Errorf("field %q: expected timestamp", key)
		}
		nanos, _ := floatField(v, "_nanoseconds")
		t := time.Unix(int64(*secs), int64(utils.DereferencePtr(nanos, 0))).UTC()
		return &t, nil
	default:
		return nil, fmt.Errorf("field %q: expected timestamp, got %T", key, raw)
	}
}
