package browse

import (
	"context"
	"net/url"

	"cropmarket-backend/internal/application/listings"
)

// Lister supplies the full listing set, newest first.
type Lister interface {
	ListListings(ctx context.Context) ([]listings.View, error)
}

type Service struct {
	Listings Lister
	PageSize int
}

// Search builds a State from q and applies it to every stored listing.
func (s *Service) Search(ctx context.Context, q url.Values) (*Result, error) {
	all, err := s.Listings.ListListings(ctx)
	if err != nil {
		return nil, err
	}
	res := Apply(all, FromQuery(q, s.PageSize))
	return &res, nil
}
