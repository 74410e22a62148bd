package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"

	"cropmarket-backend/internal/domain"
	"cropmarket-backend/internal/infrastructure/events"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MediaIntake stages uploaded photos outside the database transaction.
type MediaIntake interface {
	CheckCount(n int) error
	Stage(ctx context.Context, files []*multipart.FileHeader) ([]string, error)
	Discard(ctx context.Context, paths []string)
}

// Cache holds rendered listing views keyed by the requested identifier.
type Cache interface {
	Get(ctx context.Context, id string, dst interface{}) (bool, error)
	Set(ctx context.Context, id string, v interface{}) error
}

type Service struct {
	DB     *gorm.DB
	Media  MediaIntake
	IDs    IdentityGenerator
	Events events.Publisher // optional
	Cache  Cache            // optional

	// PlaceholderImage is shown for listings without photos.
	PlaceholderImage string
	// DiscardOnFailure removes staged photos when the listing cannot be saved.
	DiscardOnFailure bool
}

// CreatedEvent is published after a listing commits.
type CreatedEvent struct {
	ID         string  `json:"id"`
	CropType   string  `json:"cropType"`
	Region     string  `json:"region"`
	Quantity   float64 `json:"quantityTons"`
	ImageCount int     `json:"imageCount"`
}

// Submit runs the whole ingestion: photo count, field validation, photo
// intake, identity and the listing transaction. It returns the new public id.
func (s *Service) Submit(ctx context.Context, raw RawListing, files []*multipart.FileHeader) (string, error) {
	if err := s.Media.CheckCount(len(files)); err != nil {
		return "", err
	}
	in, err := Validate(raw)
	if err != nil {
		return "", err
	}
	paths, err := s.Media.Stage(ctx, files)
	if err != nil {
		s.discard(ctx, paths)
		return "", err
	}
	publicID, err := s.IDs.New(in.CropType, in.Region)
	if err != nil {
		s.discard(ctx, paths)
		return "", fmt.Errorf("Failed to generate listing id: %w", err)
	}
	listing, err := s.CreateListing(ctx, publicID, *in, paths)
	if err != nil {
		s.discard(ctx, paths)
		return "", err
	}

	s.publish(ctx, events.SubjectListingCreated, CreatedEvent{
		ID:         listing.PublicID,
		CropType:   listing.CropType,
		Region:     listing.Region,
		Quantity:   listing.QuantityTons,
		ImageCount: len(paths),
	})
	return publicID, nil
}

// CreateListing writes the listing, its images in submission order and a
// CREATED event in one transaction. Nothing is visible unless all commit.
func (s *Service) CreateListing(ctx context.Context, publicID string, in NewListing, imagePaths []string) (*domain.Listing, error) {
	listing := &domain.Listing{
		PublicID:     publicID,
		CropType:     in.CropType,
		Region:       in.Region,
		QuantityTons: in.QuantityTons,
		PricePerKg:   in.PricePerKg,
		PriceNote:    in.PriceNote,
		HarvestStart: in.HarvestStart,
		HarvestEnd:   in.HarvestEnd,
		SellerName:   in.SellerName,
		SellerPhone:  in.SellerPhone,
		SellerEmail:  in.SellerEmail,
		Description:  in.Description,
	}

	tx := s.DB.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	if err := tx.Create(listing).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("Failed to create listing: %w", err)
	}
	if len(imagePaths) > 0 {
		images := make([]domain.ListingImage, len(imagePaths))
		for i, p := range imagePaths {
			images[i] = domain.ListingImage{ListingID: listing.ID, Path: p, SortOrder: i}
		}
		if err := tx.Create(&images).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("Failed to create listing images: %w", err)
		}
		listing.Images = images
	}
	eventDataBytes, _ := json.Marshal(map[string]interface{}{
		"public_id":   publicID,
		"image_count": len(imagePaths),
		"has_price":   in.PricePerKg != nil,
		"source":      "web",
	})
	if err := tx.Create(&domain.ListingEvent{
		ListingID: listing.ID,
		EventType: domain.ListingEventCreated,
		EventData: datatypes.JSON(eventDataBytes),
	}).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("Failed to create listing event: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("Failed to create listing: %w", err)
	}
	return listing, nil
}

func (s *Service) discard(ctx context.Context, paths []string) {
	if !s.DiscardOnFailure || len(paths) == 0 {
		return
	}
	s.Media.Discard(ctx, paths)
}

func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("listings: publish event failed")
	}
}
