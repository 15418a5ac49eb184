package aggregation

import (
	"strings"

	"github.com/tallyhq/tally/internal/types"
)

// FillBuckets adds the increment to every time bucket of the property:
// yearly, monthly and daily always, hourly only for top-level
// properties and weekly only for unique-style properties.
func FillBuckets(inc map[string]float64, tc TimeContext, property string, increment float64) {
	inc[tc.Yearly+"."+property] += increment
	inc[tc.Monthly+"."+property] += increment
	inc[tc.Daily+"."+property] += increment

	// Dotted properties are already two levels deep ("TR.u"); adding an
	// hour component on top would explode the document size.
	if !strings.Contains(property, ".") {
		inc[tc.Hourly+"."+property] += increment
	}

	if isUniqueStyle(property) {
		inc[tc.WeeklyKey()+"."+property] += increment
	}
}

// Unique visitor counts cannot be summed across finer buckets, so they
// additionally keep a weekly series. Frequency and loyalty fills are
// unique-scoped too.
func isUniqueStyle(property string) bool {
	return property == types.MetricUnique.String() ||
		strings.HasSuffix(property, "."+types.MetricUnique.String()) ||
		strings.HasPrefix(property, types.MetricFrequency.String()+".") ||
		strings.HasPrefix(property, types.MetricLoyalty.String()+".")
}
