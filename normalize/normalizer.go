package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"davos_stays/models"
)

var (
	ErrBlankRow       = errors.New("blank row")
	ErrMissingAddress = errors.New("missing address")

	postalTail = regexp.MustCompile(`,?\s*\d{4}\s+[\p{L}\w]+.*$`)
)

// SlugClaimer hands out batch-unique slugs.
type SlugClaimer interface {
	Claim(base string) string
}

// Normalizer applies a rule set to spreadsheet rows.
type Normalizer struct {
	rules *Rules
	title cases.Caser
}

func New(rules *Rules) *Normalizer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Normalizer{
		rules: rules,
		title: cases.Title(language.English),
	}
}

// ParseAvailability returns true when any positive token occurs anywhere in
// the text, false when only a negative token occurs, and true otherwise.
func (n *Normalizer) ParseAvailability(c models.Cell) bool {
	text := strings.ToLower(strings.TrimSpace(c.Text))
	if text == "" {
		return true
	}
	for _, tok := range n.rules.Availability.Positive {
		if strings.Contains(text, strings.ToLower(tok)) {
			return true
		}
	}
	for _, tok := range n.rules.Availability.Negative {
		if strings.Contains(text, strings.ToLower(tok)) {
			return false
		}
	}
	return true
}

// ExtractCity picks the first configured town contained in the address,
// then the word following a postal code, then the default city.
func (n *Normalizer) ExtractCity(address string) string {
	address = strings.TrimSpace(address)
	for _, city := range n.rules.Cities {
		if strings.Contains(address, city) {
			return city
		}
	}
	if n.rules.postalCode != nil {
		if m := n.rules.postalCode.FindStringSubmatch(address); len(m) > 1 {
			return m[1]
		}
	}
	return n.rules.DefaultCity
}

// NormalizePropertyType maps free text onto one of Categories.
func (n *Normalizer) NormalizePropertyType(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	if t, ok := n.rules.PropertyTypes[key]; ok {
		return t
	}
	return n.rules.DefaultPropertyType
}

// TypeTitle renders a category for humans: "hotel_room" becomes "Hotel Room".
func (n *Normalizer) TypeTitle(propertyType string) string {
	return n.title.String(strings.ReplaceAll(propertyType, "_", " "))
}

// GenerateName builds a display name from the type and the street part of
// the address.
func (n *Normalizer) GenerateName(propertyType, address, city string) string {
	street := strings.TrimSpace(address)
	if i := strings.IndexAny(street, "\r\n"); i >= 0 {
		street = street[:i]
	}
	street = postalTail.ReplaceAllString(street, "")
	street = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(street), ","))

	typeName := n.TypeTitle(propertyType)
	if street != "" {
		return typeName + " " + street
	}
	return typeName + " " + city
}

// ShortDescription is the one-line blurb shown on listing cards.
func (n *Normalizer) ShortDescription(propertyType, city string, rooms, capacity int) string {
	plural := ""
	if rooms > 1 {
		plural = "s"
	}
	return fmt.Sprintf("%s in %s with %d bedroom%s, %d guests max.",
		n.TypeTitle(propertyType), city, rooms, plural, capacity)
}

// Row normalizes one spreadsheet row. The pricing rule is nil when the row
// has no positive price.
func (n *Normalizer) Row(row models.RawRow, slugs SlugClaimer) (*models.PropertyRecord, *models.PricingRuleRecord, error) {
	if row.Cell(models.ColType).Empty() {
		return nil, nil, ErrBlankRow
	}

	rawType := strings.TrimSpace(row.Cell(models.ColType).Text)
	address := strings.TrimSpace(row.Cell(models.ColAddress).Text)
	if address == "" {
		return nil, nil, ErrMissingAddress
	}

	bedrooms := ParseInt(row.Cell(models.ColBedrooms))
	bathrooms := ParseInt(row.Cell(models.ColBathrooms))
	guests := ParseInt(row.Cell(models.ColGuests))
	price := ParsePrice(row.Cell(models.ColPrice))
	cleaningFee := ParsePrice(row.Cell(models.ColCleaningFee))
	deposit := ParsePrice(row.Cell(models.ColDeposit))
	distance := ParseDistance(row.Cell(models.ColDistance))
	available := n.ParseAvailability(row.Cell(models.ColAvailability))
	link := optionalText(row.Cell(models.ColLink))
	owner := optionalText(row.Cell(models.ColOwner))

	city := n.ExtractCity(address)
	propertyType := n.NormalizePropertyType(rawType)
	name := n.GenerateName(propertyType, address, city)

	base := Slugify(name)
	if base == "" {
		base = Slugify(propertyType)
	}
	slug := slugs.Claim(base)

	d := n.rules.Defaults
	rooms := intOr(bedrooms, d.Rooms)
	baths := intOr(bathrooms, d.Bathrooms)
	capacity := intOr(guests, d.Capacity)
	km := d.DistanceKM
	if distance != nil && *distance > 0 {
		km = *distance
	}

	record := &models.PropertyRecord{
		Name:               name,
		Slug:               slug,
		PropertyType:       propertyType,
		Address:            strings.Join(splitLines(address), ", "),
		City:               city,
		Rooms:              rooms,
		Bathrooms:          baths,
		Capacity:           capacity,
		DistanceToCongress: Round2(km),
		CleaningFee:        cleaningFee,
		SecurityDeposit:    deposit,
		WEFPrice:           price,
		ExternalLink:       link,
		OwnerInfo:          owner,
		Active:             available,
		Featured:           false,
		Amenities:          []string{},
		ShortDescription:   n.ShortDescription(propertyType, city, rooms, capacity),
	}

	if price == nil || *price <= 0 {
		return record, nil, nil
	}

	p := n.rules.Pricing
	fee := 0.0
	if cleaningFee != nil {
		fee = *cleaningFee
	}
	pricing := &models.PricingRuleRecord{
		PropertySlug:      slug,
		Name:              p.SeasonName,
		BasePricePerNight: Round2(*price / 7),
		WEFMultiplier:     p.Multiplier,
		MinStay:           p.MinStay,
		CleaningFee:       fee,
		ValidFrom:         p.ValidFrom,
		ValidTo:           p.ValidTo,
		IsDefault:         true,
	}
	return record, pricing, nil
}

func optionalText(c models.Cell) *string {
	s := strings.TrimSpace(c.Text)
	if s == "" {
		return nil
	}
	return &s
}

// intOr treats zero and negative counts like a missing value.
func intOr(v *int, def int) int {
	if v == nil || *v <= 0 {
		return def
	}
	return *v
}

func splitLines(s string) []string {
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	if len(lines) == 0 {
		return []string{s}
	}
	return lines
}
