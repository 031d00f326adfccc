package firebasesync

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"bitbucket.org/mmdatafocus/roadworks_backend/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// References are the lookup tables used to translate Firestore strings into
// MySQL foreign keys and back. They are loaded once per stage and passed along.
type References struct {
	StatusIdByCode  map[string]int
	StatusCodeById  map[int]string
	CompanyIdByName map[string]int
	CompanyNameById map[int]string
	NewStatusId     int
}

// LoadReferences reads report_statuses and companies. Any failure here is fatal
// for the stage, as is a missing canonical "new" status.
func LoadReferences(ctx context.Context, db *gorm.DB, newStatusCode string) (*References, error) {
	var statuses []models.ReportStatus
	if err := db.WithContext(ctx).Order("id").Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("%w: load report statuses: %v", ErrRelationalUnavailable, err)
	}
	var companies []models.Company
	if err := db.WithContext(ctx).Order("id").Find(&companies).Error; err != nil {
		return nil, fmt.Errorf("%w: load companies: %v", ErrRelationalUnavailable, err)
	}

	refs := &References{
		StatusIdByCode:  make(map[string]int, len(statuses)),
		StatusCodeById:  make(map[int]string, len(statuses)),
		CompanyIdByName: make(map[string]int, len(companies)),
		CompanyNameById: make(map[int]string, len(companies)),
	}
	for _, st := range statuses {
		refs.StatusIdByCode[NormalizeStatusCode(st.Code)] = st.ID
		refs.StatusCodeById[st.ID] = st.Code
	}
	for _, c := range companies {
		key := companyKey(c.Name)
		// first one wins on duplicate names
		if _, exists := refs.CompanyIdByName[key]; !exists {
			refs.CompanyIdByName[key] = c.ID
		}
		refs.CompanyNameById[c.ID] = c.Name
	}

	newId, ok := refs.StatusIdByCode[NormalizeStatusCode(newStatusCode)]
	if !ok {
		return nil, fmt.Errorf("status %q not found in report_statuses", newStatusCode)
	}
	refs.NewStatusId = newId
	return refs, nil
}

// StatusId resolves a free-text status ("en cours", "EN_COURS", "Terminé").
func (r *References) StatusId(raw string) (int, bool) {
	code := NormalizeStatusCode(raw)
	if code == "" {
		return 0, false
	}
	id, ok := r.StatusIdByCode[code]
	return id, ok
}

// CompanyId returns nil for blank or unknown names.
func (r *References) CompanyId(name string) *int {
	key := companyKey(name)
	if key == "" {
		return nil
	}
	id, ok := r.CompanyIdByName[key]
	if !ok {
		return nil
	}
	return &id
}

// NormalizeStatusCode strips accents, upper-cases and turns spaces/hyphens into underscores.
func NormalizeStatusCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	s = strings.ToUpper(s)
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, s)
	return s
}

func companyKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
