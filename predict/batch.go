package predict

import "fmt"

// RowError ties a failure to the zero-based index of the row that caused
// it.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// RowResult is one entry of a batch response: either a prediction or a
// row-scoped error, never both.
type RowResult struct {
	Row    int       `json:"row"`
	Result *Result   `json:"result,omitempty"`
	Error  *RowError `json:"error,omitempty"`
}

// BatchSummary counts outcomes across a batch.
type BatchSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchOutcome is the complete, ordered result of a batch run. Partial
// success is a first-class value: callers inspect Results row by row.
type BatchOutcome struct {
	Results []RowResult  `json:"results"`
	Summary BatchSummary `json:"summary"`
}

// PredictBatch applies the single-prediction pipeline to each row
// independently. A failure on one row is captured in place and processing
// continues; output order matches input order.
func (s *Service) PredictBatch(records []map[string]any) BatchOutcome {
	outcome := BatchOutcome{Results: make([]RowResult, 0, len(records))}

	for i, raw := range records {
		result, err := s.PredictOne(raw)
		if err != nil {
			outcome.Results = append(outcome.Results, RowResult{
				Row:   i,
				Error: &RowError{Row: i, Reason: err.Error()},
			})
			outcome.Summary.Failed++
			continue
		}
		res := result
		outcome.Results = append(outcome.Results, RowResult{Row: i, Result: &res})
		outcome.Summary.Succeeded++
	}
	return outcome
}
