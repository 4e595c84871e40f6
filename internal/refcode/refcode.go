// Package refcode formats the human-readable sequential reference codes
// assigned to found-object reports.
package refcode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FoundPrefix is the code prefix for found-object reports.
const FoundPrefix = "FND"

var codePattern = regexp.MustCompile(`^([A-Z]{3})(\d{4,})$`)

// Format renders a counter value as a reference code, e.g. Format("FND", 1)
// returns "FND0001". The numeric part is zero-padded to four digits and
// widens past 9999.
func Format(prefix string, count int64) string {
	return fmt.Sprintf("%s%04d", prefix, count)
}

// Parse splits a reference code into prefix and counter value.
func Parse(code string) (string, int64, error) {
	m := codePattern.FindStringSubmatch(strings.TrimSpace(code))
	if m == nil {
		return "", 0, fmt.Errorf("malformed reference code %q", code)
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed reference code %q: %w", code, err)
	}
	return m[1], n, nil
}
