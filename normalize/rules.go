package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Categories lists every value NormalizePropertyType may return.
var Categories = []string{
	"apartment", "chalet", "house", "studio", "hotel_room",
	"room", "building", "group_house", "commercial",
}

type Rules struct {
	PropertyTypes       map[string]string `yaml:"property_types"`
	DefaultPropertyType string            `yaml:"default_property_type"`
	Availability        AvailabilityRules `yaml:"availability"`
	Cities              []string          `yaml:"cities"`
	PostalCodePattern   string            `yaml:"postal_code_pattern"`
	DefaultCity         string            `yaml:"default_city"`
	Pricing             PricingRules      `yaml:"pricing"`
	Defaults            RecordDefaults    `yaml:"defaults"`

	postalCode *regexp.Regexp
}

type AvailabilityRules struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

type PricingRules struct {
	SeasonName string  `yaml:"season_name"`
	ValidFrom  string  `yaml:"valid_from"`
	ValidTo    string  `yaml:"valid_to"`
	MinStay    int     `yaml:"min_stay"`
	Multiplier float64 `yaml:"multiplier"`
}

type RecordDefaults struct {
	Rooms      int     `yaml:"rooms"`
	Bathrooms  int     `yaml:"bathrooms"`
	Capacity   int     `yaml:"capacity"`
	DistanceKM float64 `yaml:"distance_km"`
}

// DefaultRules returns the embedded tables. It panics only if the embedded
// file is broken, which the package tests catch.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("normalize: embedded rules: %v", err))
	}
	return r
}

// LoadRules reads rules from path, or returns the embedded defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules and validates the property type table.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	if r.DefaultPropertyType == "" {
		r.DefaultPropertyType = "apartment"
	}
	if !isCategory(r.DefaultPropertyType) {
		return nil, fmt.Errorf("default property type %q is not a known category", r.DefaultPropertyType)
	}

	// Keys are matched against lower-cased input.
	types := make(map[string]string, len(r.PropertyTypes))
	for k, v := range r.PropertyTypes {
		if !isCategory(v) {
			return nil, fmt.Errorf("property type %q maps to unknown category %q", k, v)
		}
		types[strings.ToLower(strings.TrimSpace(k))] = v
	}
	r.PropertyTypes = types

	if r.PostalCodePattern != "" {
		re, err := regexp.Compile(r.PostalCodePattern)
		if err != nil {
			return nil, fmt.Errorf("postal code pattern: %w", err)
		}
		r.postalCode = re
	}
	if r.DefaultCity == "" {
		r.DefaultCity = "Davos"
	}
	if r.Pricing.MinStay == 0 {
		r.Pricing.MinStay = 7
	}
	if r.Pricing.Multiplier == 0 {
		r.Pricing.Multiplier = 1.0
	}
	if r.Defaults.Rooms == 0 {
		r.Defaults.Rooms = 1
	}
	if r.Defaults.Bathrooms == 0 {
		r.Defaults.Bathrooms = 1
	}
	if r.Defaults.Capacity == 0 {
		r.Defaults.Capacity = 2
	}
	if r.Defaults.DistanceKM == 0 {
		r.Defaults.DistanceKM = 1.0
	}

	return &r, nil
}

func isCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}
