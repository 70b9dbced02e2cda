package workflow

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Layouts accepted from <input type="datetime-local">. Browsers omit seconds
// unless the step attribute asks for them.
var localDateTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

var errBlank = errors.New("blank value")

// ParseLocalDateTime interprets s as a wall-clock time in loc.
func ParseLocalDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errBlank
	}
	var err error
	for _, layout := range localDateTimeLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// OptionalLocalDateTime returns nil for blank or unparseable input.
func OptionalLocalDateTime(s string, loc *time.Location) *time.Time {
	t, err := ParseLocalDateTime(s, loc)
	if err != nil {
		return nil
	}
	return &t
}

// ParseProductIDs splits a comma-separated list, skipping blank and
// non-numeric tokens. The result is never nil.
func ParseProductIDs(csv string) []int {
	ids := []int{}
	for _, tok := range strings.Split(csv, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		ids = append(ids, n)
	}
	return ids
}

// OptionalInt returns nil for blank or non-integer input.
func OptionalInt(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

// OptionalString returns nil for blank input, else the trimmed value.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// OptionalDecimal returns nil for blank or unparseable input.
func OptionalDecimal(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &d
}

// OptionalFloat returns nil for blank or unparseable input.
func OptionalFloat(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
