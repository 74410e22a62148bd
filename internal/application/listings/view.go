package listings

import "cropmarket-backend/internal/domain"

// Seller groups the contact fields of a listing.
type Seller struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

// View is the public projection of a listing. Field order is the wire order.
type View struct {
	ID           string   `json:"id"`
	CropType     string   `json:"cropType"`
	Region       string   `json:"region"`
	QuantityTons float64  `json:"quantityTons"`
	PricePerKg   *float64 `json:"pricePerKg"`
	PriceNote    *string  `json:"priceNote"`
	HarvestStart *string  `json:"harvestStart"`
	HarvestEnd   *string  `json:"harvestEnd"`
	Image        string   `json:"image"`
	Images       []string `json:"images"`
	Seller       Seller   `json:"seller"`
	CreatedAt    string   `json:"createdAt"`
	Description  *string  `json:"description"`
}

// project maps a stored row and its ordered image paths onto View. The
// primary image is the first path, or placeholder when there are none.
func project(l *domain.Listing, paths []string, placeholder string) View {
	if paths == nil {
		paths = []string{}
	}
	image := placeholder
	if len(paths) > 0 {
		image = paths[0]
	}
	return View{
		ID:           l.PublicID,
		CropType:     l.CropType,
		Region:       l.Region,
		QuantityTons: l.QuantityTons,
		PricePerKg:   l.PricePerKg,
		PriceNote:    l.PriceNote,
		HarvestStart: l.HarvestStart,
		HarvestEnd:   l.HarvestEnd,
		Image:        image,
		Images:       paths,
		Seller: Seller{
			Name:  l.SellerName,
			Phone: l.SellerPhone,
			Email: l.SellerEmail,
		},
		CreatedAt:   l.CreatedAt.Format("2006-01-02"),
		Description: l.Description,
	}
}
