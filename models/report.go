package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is a road-work report ("signalement") as the console sees it.
// FirebaseId is the cross-reference key to the Firestore copy: NULL until the report
// is imported from or exported to Firestore, unique once set.
type Report struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	Title           string              `gorm:"column:titre;size:255;not null" json:"titre"`
	Description     string              `gorm:"type:text" json:"description"`
	Latitude        float64             `gorm:"not null;default:0" json:"latitude"`
	Longitude       float64             `gorm:"not null;default:0" json:"longitude"`
	SurfaceM2       decimal.NullDecimal `gorm:"column:surface_m2;type:decimal(14,2)" json:"surface_m2"`
	Budget          decimal.NullDecimal `gorm:"type:decimal(16,2)" json:"budget"`
	DateSignalement time.Time           `gorm:"column:date_signalement;index;not null" json:"date_signalement"`
	StatusId        int                 `gorm:"index;not null" json:"status_id"`
	CompanyId       *int                `gorm:"index" json:"company_id"`
	UserId          *int                `gorm:"index" json:"user_id"`
	FirebaseId      *string             `gorm:"size:128;uniqueIndex" json:"firebase_id"`
	SyncedAt        *time.Time          `json:"synced_at"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReportRow is a report joined with its status, company and reporting user,
// the shape the export reads.
type ReportRow struct {
	ID              int                 `gorm:"column:id"`
	Title           string              `gorm:"column:titre"`
	Description     string              `gorm:"column:description"`
	Latitude        float64             `gorm:"column:latitude"`
	Longitude       float64             `gorm:"column:longitude"`
	SurfaceM2       decimal.NullDecimal `gorm:"column:surface_m2"`
	Budget          decimal.NullDecimal `gorm:"column:budget"`
	DateSignalement time.Time           `gorm:"column:date_signalement"`
	StatusId        int                 `gorm:"column:status_id"`
	CompanyId       *int                `gorm:"column:company_id"`
	UserId          *int                `gorm:"column:user_id"`
	FirebaseId      *string             `gorm:"column:firebase_id"`
	SyncedAt        *time.Time          `gorm:"column:synced_at"`
	StatusCode      *string             `gorm:"column:status_code"`
	StatusLabel     *string             `gorm:"column:status_label"`
	CompanyName     *string             `gorm:"column:company_name"`
	CompanyContact  *string             `gorm:"column:company_contact"`
	ReporterEmail   *string             `gorm:"column:reporter_email"`
}
