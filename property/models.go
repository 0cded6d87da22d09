// Package property defines the listing domain model and request validation.
package property

// Raw field names as they appear in JSON bodies and CSV headers. The order
// matches the feature order the model was trained with.
const (
	FieldBrokerTitle  = "brokertitle"
	FieldPropertyType = "type"
	FieldBeds         = "beds"
	FieldBath         = "bath"
	FieldSquareFeet   = "propertysqft"
	FieldSubLocality  = "sublocality"
)

// RequiredFields lists the six fields every prediction request must carry.
var RequiredFields = []string{
	FieldBrokerTitle,
	FieldPropertyType,
	FieldBeds,
	FieldBath,
	FieldSquareFeet,
	FieldSubLocality,
}

// Record is a single listing, immutable once validated.
type Record struct {
	BrokerTitle  string  `json:"brokertitle"`
	PropertyType string  `json:"type"`
	Beds         int     `json:"beds"`
	Bath         float64 `json:"bath"`
	SquareFeet   float64 `json:"propertysqft"`
	SubLocality  string  `json:"sublocality"`
}

// Numeric bounds enforced by the validator. Boundaries are inclusive.
const (
	MinBeds       = 0
	MaxBeds       = 8
	MinBath       = 0.0
	MaxBath       = 6.0
	MinSquareFeet = 200.0
	MaxSquareFeet = 5000.0
)

// PropertyTypes are the sale types present in the training data. Values
// outside this list are still accepted; the encoder maps them to its
// unseen-category fallback.
var PropertyTypes = []string{
	"Condo for sale",
	"House for sale",
	"Co-op for sale",
	"Multi-family home for sale",
	"Townhouse for sale",
	"Pending",
	"Contingent",
	"Land for sale",
	"For sale",
	"Foreclosure",
}

// SubLocalities are the boroughs and counties present in the training data.
var SubLocalities = []string{
	"Manhattan",
	"Brooklyn",
	"Queens",
	"Bronx County",
	"Staten Island",
	"New York",
	"Kings County",
	"Queens County",
	"Richmond County",
	"New York County",
	"The Bronx",
}
