package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing is one bulk commodity offer. Rows are written once and never updated.
// Optional columns are pointers: nil is stored as NULL and means "absent".
type Listing struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	PublicID     string    `gorm:"column:public_id;type:varchar(96);uniqueIndex;not null" json:"id"`
	CropType     string    `gorm:"column:crop_type;not null" json:"crop_type"`
	Region       string    `gorm:"column:region;not null" json:"region"`
	QuantityTons float64   `gorm:"column:quantity_tons;type:decimal(14,3);not null" json:"quantity_tons"`
	PricePerKg   *float64  `gorm:"column:price_per_kg;type:decimal(12,4)" json:"price_per_kg"`
	PriceNote    *string   `gorm:"column:price_note" json:"price_note"`
	HarvestStart *string   `gorm:"column:harvest_start;type:varchar(7)" json:"harvest_start"`
	HarvestEnd   *string   `gorm:"column:harvest_end;type:varchar(7)" json:"harvest_end"`
	SellerName   string    `gorm:"column:seller_name;not null" json:"seller_name"`
	SellerPhone  *string   `gorm:"column:seller_phone" json:"seller_phone"`
	SellerEmail  *string   `gorm:"column:seller_email" json:"seller_email"`
	Description  *string   `gorm:"column:description;type:text" json:"description"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`

	Images []ListingImage `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Listing) TableName() string {
	return "listings"
}

// ListingImage is one stored photo. Path is relative to the public site root,
// or an absolute URL when photos live in object storage.
type ListingImage struct {
	ID        uint   `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	ListingID uint   `gorm:"column:listing_id;not null;index" json:"-"`
	Path      string `gorm:"column:path;not null" json:"path"`
	SortOrder int    `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
}

func (ListingImage) TableName() string {
	return "listing_images"
}

// Listing event types.
const (
	ListingEventCreated = "CREATED"
)

// ListingEvent is an audit row written in the same transaction as the listing it describes.
type ListingEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	ListingID uint           `gorm:"column:listing_id;not null;index" json:"listing_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Listing Listing `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ListingEvent) TableName() string {
	return "listing_events"
}

func (le *ListingEvent) BeforeCreate(tx *gorm.DB) error {
	if le.EventID == uuid.Nil {
		le.EventID = uuid.New()
	}
	return nil
}
