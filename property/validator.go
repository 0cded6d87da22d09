package property

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MissingFieldsError reports every required field absent from a request.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// RangeError reports a numeric field outside its documented bounds.
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s=%v out of range [%v, %v]", e.Field, e.Value, e.Min, e.Max)
}

// TypeError reports a field that failed to parse as its declared type.
type TypeError struct {
	Field  string
	Reason string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks a raw request against the listing schema and returns an
// immutable Record. Checks run in order: presence of all six fields,
// categorical fields as non-empty strings, numeric fields parsed and range
// checked. Unknown categorical values are accepted; the encoder handles
// them with its fallback score. Validate is pure and side-effect free.
func Validate(raw map[string]any) (Record, error) {
	var missing []string
	for _, field := range RequiredFields {
		if v, ok := raw[field]; !ok || v == nil {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Record{}, &MissingFieldsError{Fields: missing}
	}

	broker, err := stringField(raw, FieldBrokerTitle)
	if err != nil {
		return Record{}, err
	}
	propType, err := stringField(raw, FieldPropertyType)
	if err != nil {
		return Record{}, err
	}
	subLocality, err := stringField(raw, FieldSubLocality)
	if err != nil {
		return Record{}, err
	}

	beds, err := intField(raw, FieldBeds, MinBeds, MaxBeds)
	if err != nil {
		return Record{}, err
	}
	bath, err := floatField(raw, FieldBath, MinBath, MaxBath)
	if err != nil {
		return Record{}, err
	}
	sqft, err := floatField(raw, FieldSquareFeet, MinSquareFeet, MaxSquareFeet)
	if err != nil {
		return Record{}, err
	}

	return Record{
		BrokerTitle:  broker,
		PropertyType: propType,
		Beds:         beds,
		Bath:         bath,
		SquareFeet:   sqft,
		SubLocality:  subLocality,
	}, nil
}

func stringField(raw map[string]any, field string) (string, error) {
	s, ok := raw[field].(string)
	if !ok {
		return "", &TypeError{Field: field, Reason: "must be a string"}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &TypeError{Field: field, Reason: "must not be empty"}
	}
	return s, nil
}

func intField(raw map[string]any, field string, min, max int) (int, error) {
	f, err := numericValue(raw[field], field)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, &TypeError{Field: field, Reason: "must be an integer"}
	}
	n := int(f)
	if n < min || n > max {
		return 0, &RangeError{Field: field, Value: f, Min: float64(min), Max: float64(max)}
	}
	return n, nil
}

func floatField(raw map[string]any, field string, min, max float64) (float64, error) {
	f, err := numericValue(raw[field], field)
	if err != nil {
		return 0, err
	}
	if f < min || f > max {
		return 0, &RangeError{Field: field, Value: f, Min: min, Max: max}
	}
	return f, nil
}

// numericValue accepts the types a JSON decode or CSV parse can produce.
func numericValue(v any, field string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, &TypeError{Field: field, Reason: "must be numeric"}
		}
		return f, nil
	default:
		return 0, &TypeError{Field: field, Reason: "must be numeric"}
	}
}
