package models

import "time"

type Academy struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AcademyAdmin is one member of an academy's admin roster.
type AcademyAdmin struct {
	AcademyID string    `gorm:"primaryKey;size:64" json:"academyId"`
	UserID    string    `gorm:"primaryKey;size:36" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
