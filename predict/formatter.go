package predict

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"nyhousing/ml"
)

// Tier buckets a predicted price.
type Tier string

const (
	TierBudget   Tier = "Budget"
	TierMidRange Tier = "Mid-Range"
	TierLuxury   Tier = "Luxury"
)

// TierConfig holds the tier boundaries in one place. Prices below BudgetMax
// are Budget, prices at or above LuxuryMin are Luxury, everything between
// is Mid-Range.
type TierConfig struct {
	BudgetMax float64 `yaml:"budget_max"`
	LuxuryMin float64 `yaml:"luxury_min"`
}

// DefaultTierConfig returns the boundaries the model was calibrated
// against.
func DefaultTierConfig() TierConfig {
	return TierConfig{BudgetMax: 400000, LuxuryMin: 2000000}
}

// Performance mirrors the artifact's validation metrics in responses.
type Performance struct {
	ValidationR2   float64 `json:"validation_r2"`
	ValidationRMSE float64 `json:"validation_rmse"`
}

// Result is the structured outcome of one prediction.
type Result struct {
	RawPrice         float64     `json:"predicted_price"`
	FormattedPrice   string      `json:"price_formatted"`
	PriceTier        Tier        `json:"price_tier"`
	ModelInfo        string      `json:"model_info"`
	FeaturesUsed     []string    `json:"features_used"`
	ModelPerformance Performance `json:"model_performance"`
}

// Formatter shapes a raw price into a Result. Pure: no randomness, no I/O.
type Formatter struct {
	tiers   TierConfig
	printer *message.Printer
}

// NewFormatter creates a Formatter with the given tier boundaries.
func NewFormatter(tiers TierConfig) *Formatter {
	if tiers.BudgetMax <= 0 || tiers.LuxuryMin <= tiers.BudgetMax {
		tiers = DefaultTierConfig()
	}
	return &Formatter{
		tiers:   tiers,
		printer: message.NewPrinter(language.AmericanEnglish),
	}
}

// Format builds a Result for rawPrice, attaching static metadata from the
// loaded artifact.
func (f *Formatter) Format(rawPrice float64, metadata ml.Metadata) Result {
	return Result{
		RawPrice:       math.Round(rawPrice*100) / 100,
		FormattedPrice: f.printer.Sprintf("$%d", int64(math.Round(rawPrice))),
		PriceTier:      f.tier(rawPrice),
		ModelInfo:      metadata.ModelInfo.Name,
		FeaturesUsed:   metadata.DataInfo.SelectedFeatures,
		ModelPerformance: Performance{
			ValidationR2:   math.Round(metadata.Performance.ValidationR2*10000) / 10000,
			ValidationRMSE: math.Round(metadata.Performance.ValidationRMSE),
		},
	}
}

func (f *Formatter) tier(price float64) Tier {
	switch {
	case price < f.tiers.BudgetMax:
		return TierBudget
	case price < f.tiers.LuxuryMin:
		return TierMidRange
	default:
		return TierLuxury
	}
}
