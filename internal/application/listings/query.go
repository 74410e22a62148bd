package listings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cropmarket-backend/internal/domain"
	"cropmarket-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// GetListing resolves id as a public identifier first and, only when that
// misses and id is all digits, as the internal numeric key. Hits are cached
// under the identifier as requested.
func (s *Service) GetListing(ctx context.Context, id string) (*View, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMissingID
	}

	if s.Cache != nil {
		var cached View
		hit, err := s.Cache.Get(ctx, id, &cached)
		if err != nil {
			log.Warn().Err(err).Str("id", id).Msg("listings: cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	listing, err := s.findByPublicID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing == nil && validation.IsDigits(id) {
		if listing, err = s.findByKey(ctx, id); err != nil {
			return nil, err
		}
	}
	if listing == nil {
		return nil, &NotFoundError{Requested: id}
	}

	paths, err := s.imagePaths(ctx, []uint{listing.ID})
	if err != nil {
		return nil, err
	}
	view := project(listing, paths[listing.ID], s.PlaceholderImage)

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, id, view); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("listings: cache write failed")
		}
	}
	return &view, nil
}

// ListListings returns every listing, newest first. Images for all listings
// are fetched with a single query.
func (s *Service) ListListings(ctx context.Context) ([]View, error) {
	var rows []domain.Listing
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch listings: %w", err)
	}
	ids := make([]uint, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	paths, err := s.imagePaths(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(rows))
	for i := range rows {
		views[i] = project(&rows[i], paths[rows[i].ID], s.PlaceholderImage)
	}
	return views, nil
}

// CountListings reports the number of stored listings.
func (s *Service) CountListings(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Listing{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("Failed to count listings: %w", err)
	}
	return n, nil
}

func (s *Service) findByPublicID(ctx context.Context, id string) (*domain.Listing, error) {
	var listing domain.Listing
	err := s.DB.WithContext(ctx).Where("public_id = ?", id).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch listing: %w", err)
	}
	return &listing, nil
}

func (s *Service) findByKey(ctx context.Context, id string) (*domain.Listing, error) {
	key, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		// out of range for any stored key
		return nil, nil
	}
	var listing domain.Listing
	err = s.DB.WithContext(ctx).Where("id = ?", key).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch listing: %w", err)
	}
	return &listing, nil
}

// imagePaths returns the ordered photo paths per listing key.
func (s *Service) imagePaths(ctx context.Context, ids []uint) (map[uint][]string, error) {
	out := make(map[uint][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var images []domain.ListingImage
	if err := s.DB.WithContext(ctx).
		Where("listing_id IN ?", ids).
		Order("listing_id ASC").Order("sort_order ASC").Order("id ASC").
		Find(&images).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch listing images: %w", err)
	}
	for _, img := range images {
		out[img.ListingID] = append(out[img.ListingID], img.Path)
	}
	return out, nil
}
