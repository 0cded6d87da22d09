package pipeline

import (
	"fmt"
	"sort"
)

// CleaningRule rejects listings that should not reach encoder fitting.
type CleaningRule interface {
	Apply(Listing) error
	Name() string
}

// CleaningStats summarizes one cleaning pass.
type CleaningStats struct {
	TotalProcessed int            `json:"total_processed"`
	Passed         int            `json:"passed"`
	Rejected       int            `json:"rejected"`
	Issues         map[string]int `json:"issues"`
}

// Cleaner applies per-row rules, then trims price and square-footage
// outliers to the 1st-99th percentile band.
type Cleaner struct {
	rules         []CleaningRule
	lowerQuantile float64
	upperQuantile float64
}

// NewCleaner builds a Cleaner with the default rules and percentile band.
func NewCleaner() *Cleaner {
	return &Cleaner{
		rules: []CleaningRule{
			positivePriceRule{},
			positiveSizeRule{},
			bedsBathRule{},
		},
		lowerQuantile: 0.01,
		upperQuantile: 0.99,
	}
}

// Clean filters listings and reports what was dropped and why.
func (c *Cleaner) Clean(listings []Listing) ([]Listing, CleaningStats) {
	stats := CleaningStats{
		TotalProcessed: len(listings),
		Issues:         make(map[string]int),
	}

	kept := make([]Listing, 0, len(listings))
	for _, listing := range listings {
		if issue := c.applyRules(listing); issue != "" {
			stats.Rejected++
			stats.Issues[issue]++
			continue
		}
		kept = append(kept, listing)
	}

	kept = c.trimOutliers(kept, &stats)
	stats.Passed = len(kept)
	return kept, stats
}

func (c *Cleaner) applyRules(listing Listing) string {
	for _, rule := range c.rules {
		if err := rule.Apply(listing); err != nil {
			return rule.Name()
		}
	}
	return ""
}

func (c *Cleaner) trimOutliers(listings []Listing, stats *CleaningStats) []Listing {
	if len(listings) < 100 {
		// Percentile trimming on tiny samples throws away real data.
		return listings
	}

	prices := make([]float64, len(listings))
	sizes := make([]float64, len(listings))
	for i, l := range listings {
		prices[i] = l.Price
		sizes[i] = l.SquareFeet
	}
	priceLo, priceHi := quantile(prices, c.lowerQuantile), quantile(prices, c.upperQuantile)
	sizeLo, sizeHi := quantile(sizes, c.lowerQuantile), quantile(sizes, c.upperQuantile)

	kept := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if l.Price < priceLo || l.Price > priceHi {
			stats.Rejected++
			stats.Issues["price_outlier"]++
			continue
		}
		if l.SquareFeet < sizeLo || l.SquareFeet > sizeHi {
			stats.Rejected++
			stats.Issues["sqft_outlier"]++
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

type positivePriceRule struct{}

func (positivePriceRule) Name() string { return "nonpositive_price" }

func (positivePriceRule) Apply(l Listing) error {
	if l.Price <= 0 {
		return fmt.Errorf("price %v is not positive", l.Price)
	}
	return nil
}

type positiveSizeRule struct{}

func (positiveSizeRule) Name() string { return "nonpositive_sqft" }

func (positiveSizeRule) Apply(l Listing) error {
	if l.SquareFeet <= 0 {
		return fmt.Errorf("square footage %v is not positive", l.SquareFeet)
	}
	return nil
}

type bedsBathRule struct{}

func (bedsBathRule) Name() string { return "negative_rooms" }

func (bedsBathRule) Apply(l Listing) error {
	if l.Beds < 0 || l.Bath < 0 {
		return fmt.Errorf("beds=%d bath=%v", l.Beds, l.Bath)
	}
	return nil
}
