package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultMinSampleSize is the smallest population that yields thresholds.
const DefaultMinSampleSize = 3

// Tertiles splits prices into three bands using nearest-rank percentiles:
// lower is the value at rank ceil(n/3) and upper the value at rank ceil(2n/3)
// of the ascending population. It reports false when fewer than minSample
// prices are given. The input slice is not modified.
func Tertiles(prices []decimal.Decimal, minSample int) (Bounds, bool) {
	if minSample < 1 {
		minSample = 1
	}
	n := len(prices)
	if n < minSample || n == 0 {
		return Bounds{}, false
	}

	sorted := make([]decimal.Decimal, n)
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	return Bounds{
		Lower: sorted[nearestRank(n, 1)-1],
		Upper: sorted[nearestRank(n, 2)-1],
	}, true
}

// nearestRank returns ceil(k*n/3), never less than 1.
func nearestRank(n, k int) int {
	r := (k*n + 2) / 3
	if r < 1 {
		r = 1
	}
	return r
}
