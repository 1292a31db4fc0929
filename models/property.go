package models

// PropertyRecord is one normalized listing as written to properties.json.
type PropertyRecord struct {
	Name               string   `json:"name"`
	Slug               string   `json:"slug"`
	PropertyType       string   `json:"property_type"`
	Address            string   `json:"address"`
	City               string   `json:"city"`
	Rooms              int      `json:"rooms"`
	Bathrooms          int      `json:"bathrooms"`
	Capacity           int      `json:"capacity"`
	DistanceToCongress float64  `json:"distance_to_congress"`
	CleaningFee        *float64 `json:"cleaning_fee"`
	SecurityDeposit    *float64 `json:"security_deposit"`
	WEFPrice           *float64 `json:"wef_price"`
	ExternalLink       *string  `json:"external_link"`
	OwnerInfo          *string  `json:"owner_info"`
	Active             bool     `json:"active"`
	Featured           bool     `json:"featured"`
	Amenities          []string `json:"amenities"`
	Description        *string  `json:"description"`
	ShortDescription   string   `json:"short_description"`
}

// PropertyRow is the subset of PropertyRecord the remote properties table accepts.
type PropertyRow struct {
	Name               string   `json:"name"`
	Slug               string   `json:"slug"`
	Address            string   `json:"address"`
	City               string   `json:"city"`
	Rooms              int      `json:"rooms"`
	Bathrooms          int      `json:"bathrooms"`
	Capacity           int      `json:"capacity"`
	DistanceToCongress float64  `json:"distance_to_congress"`
	CleaningFee        *float64 `json:"cleaning_fee"`
	SecurityDeposit    *float64 `json:"security_deposit"`
	Active             bool     `json:"active"`
	Featured           bool     `json:"featured"`
	Amenities          []string `json:"amenities"`
	Description        *string  `json:"description"`
	ShortDescription   string   `json:"short_description"`
}

// RemoteRow strips the fields that only exist in the JSON export.
func (p *PropertyRecord) RemoteRow() PropertyRow {
	amenities := p.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return PropertyRow{
		Name:               p.Name,
		Slug:               p.Slug,
		Address:            p.Address,
		City:               p.City,
		Rooms:              p.Rooms,
		Bathrooms:          p.Bathrooms,
		Capacity:           p.Capacity,
		DistanceToCongress: p.DistanceToCongress,
		CleaningFee:        p.CleaningFee,
		SecurityDeposit:    p.SecurityDeposit,
		Active:             p.Active,
		Featured:           p.Featured,
		Amenities:          amenities,
		Description:        p.Description,
		ShortDescription:   p.ShortDescription,
	}
}

// PricingRuleRecord is a dated nightly rate attached to a property by slug.
type PricingRuleRecord struct {
	PropertySlug      string  `json:"property_slug"`
	Name              string  `json:"name"`
	BasePricePerNight float64 `json:"base_price_per_night"`
	WEFMultiplier     float64 `json:"wef_multiplier"`
	MinStay           int     `json:"min_stay"`
	CleaningFee       float64 `json:"cleaning_fee"`
	ValidFrom         string  `json:"valid_from"`
	ValidTo           string  `json:"valid_to"`
	IsDefault         bool    `json:"is_default"`
}

// SubmitResult summarizes one remote submission.
type SubmitResult struct {
	Inserted int
	Batches  int
	Rejected int
}
