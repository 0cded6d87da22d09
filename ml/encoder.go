package ml

import "errors"

// UnseenCategoryScore is the frequency assigned to categories never observed
// during training. Fixed at zero so encoding stays a pure table lookup.
const UnseenCategoryScore = 0.0

// FrequencyTable maps a categorical value to the fraction of training rows
// holding that value. Tables are fitted once at training time and serialized
// into the metadata artifact; inference never touches the training data.
type FrequencyTable map[string]float64

// FitFrequencyTable computes the frequency of each distinct value in a
// training column.
func FitFrequencyTable(column []string) (FrequencyTable, error) {
	if len(column) == 0 {
		return nil, errors.New("column is empty")
	}

	counts := make(map[string]int, len(column))
	for _, value := range column {
		counts[value]++
	}

	table := make(FrequencyTable, len(counts))
	total := float64(len(column))
	for value, count := range counts {
		table[value] = float64(count) / total
	}
	return table, nil
}

// Transform looks up a value's learned frequency. Unseen values get
// UnseenCategoryScore rather than an error; the category universe can grow
// after training.
func (t FrequencyTable) Transform(value string) float64 {
	if score, ok := t[value]; ok {
		return score
	}
	return UnseenCategoryScore
}
