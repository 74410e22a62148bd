package domain

import "time"

// Report flags a listing by its public id. The target is not required to exist.
type Report struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ListingPublicID string    `gorm:"column:listing_public_id;type:varchar(96);not null;index" json:"listing_public_id"`
	ReporterName    string    `gorm:"column:reporter_name" json:"reporter_name"`
	ReporterContact string    `gorm:"column:reporter_contact" json:"reporter_contact"`
	Description     string    `gorm:"column:description;type:text;not null" json:"description"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Report) TableName() string {
	return "reports"
}
