package browse

import (
	"net/url"
	"strconv"
	"strings"

	"cropmarket-backend/internal/pkg/validation"
)

// SortMode orders the filtered listings.
type SortMode string

const (
	SortNewest    SortMode = "newest"
	SortQtyAsc    SortMode = "qtyAsc"
	SortQtyDesc   SortMode = "qtyDesc"
	SortPriceAsc  SortMode = "priceAsc"
	SortPriceDesc SortMode = "priceDesc"
)

// DefaultPageSize fills a 3x3 grid.
const DefaultPageSize = 9

// ParseSortMode maps unknown or empty values to SortNewest.
func ParseSortMode(s string) SortMode {
	switch m := SortMode(strings.TrimSpace(s)); m {
	case SortQtyAsc, SortQtyDesc, SortPriceAsc, SortPriceDesc:
		return m
	default:
		return SortNewest
	}
}

// Filters are combined with AND. Zero values and nil bounds are inactive.
type Filters struct {
	CropType     string
	Region       string
	MinQuantity  *float64
	MaxQuantity  *float64
	HarvestMonth string // YYYY-MM
	MinPrice     *float64
	MaxPrice     *float64
}

func (f Filters) hasPriceBound() bool {
	return f.MinPrice != nil || f.MaxPrice != nil
}

// State is everything needed to reproduce one browse view. It is built per
// request and round-trips through the URL query.
type State struct {
	Filters  Filters
	Sort     SortMode
	Page     int
	PageSize int
}

// FromQuery reads the browse parameters. Unparseable numbers are treated as
// absent and an invalid page becomes 1.
func FromQuery(q url.Values, pageSize int) State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page, err := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	if err != nil || page < 1 {
		page = 1
	}
	return State{
		Filters: Filters{
			CropType:     strings.TrimSpace(q.Get("cropType")),
			Region:       strings.TrimSpace(q.Get("region")),
			MinQuantity:  number(q.Get("minQuantity")),
			MaxQuantity:  number(q.Get("maxQuantity")),
			HarvestMonth: strings.TrimSpace(q.Get("harvestMonth")),
			MinPrice:     number(q.Get("minPrice")),
			MaxPrice:     number(q.Get("maxPrice")),
		},
		Sort:     ParseSortMode(q.Get("sortBy")),
		Page:     page,
		PageSize: pageSize,
	}
}

// Query serializes s. page and sortBy are always written; filters only when set.
func (s State) Query() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(s.Page))
	setString(q, "cropType", s.Filters.CropType)
	setString(q, "region", s.Filters.Region)
	setNumber(q, "minQuantity", s.Filters.MinQuantity)
	setNumber(q, "maxQuantity", s.Filters.MaxQuantity)
	setString(q, "harvestMonth", s.Filters.HarvestMonth)
	setNumber(q, "minPrice", s.Filters.MinPrice)
	setNumber(q, "maxPrice", s.Filters.MaxPrice)
	sort := s.Sort
	if sort == "" {
		sort = SortNewest
	}
	q.Set("sortBy", string(sort))
	return q
}

// ActiveFilters labels the filters in effect, in display order.
func (s State) ActiveFilters() []string {
	f := s.Filters
	labels := []string{}
	if f.CropType != "" {
		labels = append(labels, "Crop")
	}
	if f.Region != "" {
		labels = append(labels, "Region")
	}
	if f.MinQuantity != nil || f.MaxQuantity != nil {
		labels = append(labels, "Quantity")
	}
	if f.HarvestMonth != "" {
		labels = append(labels, "Harvest")
	}
	if f.hasPriceBound() {
		labels = append(labels, "Price")
	}
	if s.Sort != "" && s.Sort != SortNewest {
		labels = append(labels, "Sort")
	}
	return labels
}

func number(s string) *float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	f, ok := validation.ParseNumber(s)
	if !ok {
		return nil
	}
	return &f
}

func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func setNumber(q url.Values, key string, v *float64) {
	if v != nil {
		q.Set(key, strconv.FormatFloat(*v, 'f', -1, 64))
	}
}
