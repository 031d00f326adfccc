package models

import "time"

type ReportStatus struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Label     string    `gorm:"size:100;not null" json:"label"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ReportStatusHistory keeps every status a report went through.
type ReportStatusHistory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	ReportId  int       `gorm:"index;not null" json:"report_id"`
	StatusId  int       `gorm:"index;not null" json:"status_id"`
	ChangedAt time.Time `gorm:"not null" json:"changed_at"`
	Comment   string    `gorm:"size:255" json:"comment"`
}

type Company struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Contact   string    `gorm:"size:150" json:"contact"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
