package pipeline

import "strings"

// AuxiliaryFieldCorrelator picks the value of a side column (no, code, total, discount) for the i-th item found in a buffer.
type AuxiliaryFieldCorrelator interface {
	Correlate(values []string, index int) (string, bool)
}

// IndexClampCorrelator takes the value at the item index, or the last value when there are fewer values than items.
type IndexClampCorrelator struct{}

func (IndexClampCorrelator) Correlate(values []string, index int) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	if index >= len(values) {
		index = len(values) - 1
	}
	if index < 0 {
		index = 0
	}
	return values[index], true
}

// splitField splits an accumulated column into its line and whitespace separated tokens.
func splitField(acc string) []string {
	return strings.Fields(acc)
}
