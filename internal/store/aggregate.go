package store

import (
	"github.com/shopspring/decimal"
)

// sumOf reduces records to the sum of value over those accepted by keep.
// An empty input sums to zero.
func sumOf[T any](records []T, keep func(T) bool, value func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if keep == nil || keep(r) {
			total = total.Add(value(r))
		}
	}
	return total
}

// sumBy groups sumOf by key.
func sumBy[T any, K comparable](records []T, key func(T) K, value func(T) decimal.Decimal) map[K]decimal.Decimal {
	out := make(map[K]decimal.Decimal)
	for _, r := range records {
		k := key(r)
		out[k] = out[k].Add(value(r))
	}
	return out
}
