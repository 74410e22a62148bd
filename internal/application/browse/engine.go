package browse

import (
	"sort"

	"cropmarket-backend/internal/application/listings"
)

const pageWindow = 2

// PageMarker is one entry of the page-number strip: a page or an ellipsis.
type PageMarker struct {
	Page     int  `json:"page,omitempty"`
	Current  bool `json:"current,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// Facets lists the distinct values available for the select filters.
type Facets struct {
	CropTypes []string `json:"cropTypes"`
	Regions   []string `json:"regions"`
}

// Result is one rendered page of the browse view.
type Result struct {
	Items         []listings.View `json:"items"`
	Total         int             `json:"total"`
	Page          int             `json:"page"`
	PageSize      int             `json:"pageSize"`
	TotalPages    int             `json:"totalPages"`
	HasPrev       bool            `json:"hasPrev"`
	HasNext       bool            `json:"hasNext"`
	Pages         []PageMarker    `json:"pages"`
	ActiveFilters []string        `json:"activeFilters"`
	Facets        Facets          `json:"facets"`
	Query         string          `json:"query"`
}

// Apply filters, sorts and paginates all. The page is clamped into
// [1, totalPages] and the returned query reflects the clamped page.
func Apply(all []listings.View, st State) Result {
	if st.PageSize <= 0 {
		st.PageSize = DefaultPageSize
	}
	if st.Sort == "" {
		st.Sort = SortNewest
	}

	filtered := make([]listings.View, 0, len(all))
	for _, v := range all {
		if st.Filters.match(v) {
			filtered = append(filtered, v)
		}
	}
	sortViews(filtered, st.Sort)

	total := len(filtered)
	totalPages := (total + st.PageSize - 1) / st.PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if st.Page > totalPages {
		st.Page = totalPages
	}
	if st.Page < 1 {
		st.Page = 1
	}

	start := (st.Page - 1) * st.PageSize
	end := start + st.PageSize
	if end > total {
		end = total
	}

	return Result{
		Items:         filtered[start:end],
		Total:         total,
		Page:          st.Page,
		PageSize:      st.PageSize,
		TotalPages:    totalPages,
		HasPrev:       st.Page > 1,
		HasNext:       st.Page < totalPages,
		Pages:         pageMarkers(st.Page, totalPages),
		ActiveFilters: st.ActiveFilters(),
		Facets:        facets(all),
		Query:         st.Query().Encode(),
	}
}

func (f Filters) match(v listings.View) bool {
	if f.CropType != "" && v.CropType != f.CropType {
		return false
	}
	if f.Region != "" && v.Region != f.Region {
		return false
	}
	if f.MinQuantity != nil && v.QuantityTons < *f.MinQuantity {
		return false
	}
	if f.MaxQuantity != nil && v.QuantityTons > *f.MaxQuantity {
		return false
	}
	// Listings with an incomplete harvest window are never excluded by month.
	if f.HarvestMonth != "" && v.HarvestStart != nil && v.HarvestEnd != nil {
		if f.HarvestMonth < *v.HarvestStart || f.HarvestMonth > *v.HarvestEnd {
			return false
		}
	}
	if f.hasPriceBound() {
		if v.PricePerKg == nil {
			return false
		}
		if f.MinPrice != nil && *v.PricePerKg < *f.MinPrice {
			return false
		}
		if f.MaxPrice != nil && *v.PricePerKg > *f.MaxPrice {
			return false
		}
	}
	return true
}

// sortViews orders in place. Equal keys keep their incoming order, and
// listings without a price go last in both price directions.
func sortViews(views []listings.View, mode SortMode) {
	var less func(a, b listings.View) bool
	switch mode {
	case SortQtyAsc:
		less = func(a, b listings.View) bool { return a.QuantityTons < b.QuantityTons }
	case SortQtyDesc:
		less = func(a, b listings.View) bool { return a.QuantityTons > b.QuantityTons }
	case SortPriceAsc:
		less = priceLess(func(x, y float64) bool { return x < y })
	case SortPriceDesc:
		less = priceLess(func(x, y float64) bool { return x > y })
	default:
		less = func(a, b listings.View) bool { return a.CreatedAt > b.CreatedAt }
	}
	sort.SliceStable(views, func(i, j int) bool { return less(views[i], views[j]) })
}

func priceLess(cmp func(x, y float64) bool) func(a, b listings.View) bool {
	return func(a, b listings.View) bool {
		switch {
		case a.PricePerKg == nil:
			return false
		case b.PricePerKg == nil:
			return true
		default:
			return cmp(*a.PricePerKg, *b.PricePerKg)
		}
	}
}

// pageMarkers lists every page when there are at most seven, otherwise the
// first and last pages plus a window of two either side of current.
func pageMarkers(current, totalPages int) []PageMarker {
	markers := []PageMarker{}
	add := func(p int) {
		markers = append(markers, PageMarker{Page: p, Current: p == current})
	}
	if totalPages <= 7 {
		for p := 1; p <= totalPages; p++ {
			add(p)
		}
		return markers
	}

	add(1)
	start := current - pageWindow
	if start < 2 {
		start = 2
	}
	end := current + pageWindow
	if end > totalPages-1 {
		end = totalPages - 1
	}
	if start > 2 {
		markers = append(markers, PageMarker{Ellipsis: true})
	}
	for p := start; p <= end; p++ {
		add(p)
	}
	if end < totalPages-1 {
		markers = append(markers, PageMarker{Ellipsis: true})
	}
	add(totalPages)
	return markers
}

func facets(all []listings.View) Facets {
	return Facets{
		CropTypes: distinct(all, func(v listings.View) string { return v.CropType }),
		Regions:   distinct(all, func(v listings.View) string { return v.Region }),
	}
}

func distinct(all []listings.View, key func(listings.View) string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, v := range all {
		k := key(v)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
