package compact

import (
	"math"
	"strconv"
	"strings"
)

// DecimalString renders a float as a short, exact decimal suitable for
// persistence. Nine significant digits are enough to absorb binary-float
// artifacts (0.1 + 0.2 comes out as "0.3", not "0.30000000000000004")
// while keeping similarity scores distinguishable. Non-finite values
// collapse to "0" so the record stays writable.
func DecimalString(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'g', 9, 64)
	if strings.ContainsAny(s, "eE") {
		// Re-render exponent forms as plain decimals.
		r, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return s
		}
		s = strconv.FormatFloat(r, 'f', -1, 64)
	}
	return s
}
