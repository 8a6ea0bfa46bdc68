package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FilterRules is the immutable ruleset the prefilter evaluates listings
// against. It is built once per filtering run and shared read-only.
type FilterRules struct {
	MaxPrice      int `yaml:"max_price"`
	MaxDaysListed int `yaml:"max_days_listed"`

	ExcludedIndustries    []string `yaml:"excluded_industries"`
	ExcludedTitleKeywords []string `yaml:"excluded_title_keywords"`

	// Industries where a 'franchise' title keyword is acceptable
	// (professional services).
	FranchiseAllowedIndustries []string `yaml:"franchise_allowed_industries"`
}

// DefaultFilterRules returns the built-in ruleset.
func DefaultFilterRules() *FilterRules {
	return &FilterRules{
		MaxPrice:      1_000_000,
		MaxDaysListed: 60,
		ExcludedIndustries: []string{
			// Retail
			"retail",
			// Hospitality
			"food & drink",
			"coffee", "cafe", "restaurant",
			"pub", "bar",
			"accommodation", "tourism", "leisure",
			"takeaway", "hospitality",
			// Franchise (checked in title too)
			"franchise",
			"master franchise",
			// Personal services
			"driving school", "driving",
			"beauty", "hair", "spa",
			"massage", "pilates", "gym", "fitness", "f45",
			"mechanic", "automotive", "tyre", "car detailing",
			"electrical", "electrical services",
			"handyman", "home services",
			"cleaning", "maintenance", "dry cleaning", "laundromat", "laundry",
			"fencing",
			"sports",
			"pest control",
			"taxi", "transport", "chauffeur", "courier", "freight", "truck",
			"pet grooming", "dog grooming",
			"garden", "lawn", "mowing", "nursery", "landscaping",
			"removals",
			"air conditioning", "air-con",
			"carpet", "flooring",
			"refund",
		},
		ExcludedTitleKeywords: []string{
			"franchise",
			"pest control",
			"driving school",
			"driving",
			"massage",
			"pilates",
			"gym",
			"fitness",
			"f45",
			"beauty",
			"hair salon",
			"dry cleaning",
			"laundromat",
			"laundry",
			"handyman",
			"garden",
			"lawn",
			"mowing",
			"nursery",
			"courier",
			"taxi",
			"refund",
			"dog grooming",
			"pet grooming",
		},
		FranchiseAllowedIndustries: []string{
			"mortgage",
			"finance",
			"insurance",
			"legal",
			"accounting",
			"business services",
			"real estate",
		},
	}
}

// LoadFilterRules reads a YAML ruleset from path, overlaying it on the
// defaults. Fields left empty in the file keep their default values.
// An empty path returns the defaults unchanged.
func LoadFilterRules(path string) (*FilterRules, error) {
	rules := DefaultFilterRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %q: %w", path, err)
	}

	var override FilterRules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("rules: parse %q: %w", path, err)
	}

	if override.MaxPrice > 0 {
		rules.MaxPrice = override.MaxPrice
	}
	if override.MaxDaysListed > 0 {
		rules.MaxDaysListed = override.MaxDaysListed
	}
	if len(override.ExcludedIndustries) > 0 {
		rules.ExcludedIndustries = override.ExcludedIndustries
	}
	if len(override.ExcludedTitleKeywords) > 0 {
		rules.ExcludedTitleKeywords = override.ExcludedTitleKeywords
	}
	if len(override.FranchiseAllowedIndustries) > 0 {
		rules.FranchiseAllowedIndustries = override.FranchiseAllowedIndustries
	}

	return rules, nil
}
