package audit

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/qartal/kongsync/internal/errors"
)

// relativePattern matches duration shorthands like "7d", "24h", "30m".
var relativePattern = regexp.MustCompile(`^(\d+)([dhm])$`)

// absoluteLayouts are tried in order for absolute date/time input.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseSince converts a user-supplied time expression into a cutoff.
//
// Accepted forms: a relative shorthand ("7d", "24h", "30m") interpreted
// as that long before now, or an absolute date/time in RFC 3339 or
// date-only form. Anything else fails with a descriptive input error.
func ParseSince(text string) (time.Time, error) {
	return parseSinceAt(text, time.Now().UTC())
}

// parseSinceAt is ParseSince with an injectable clock for tests.
func parseSinceAt(text string, now time.Time) (time.Time, error) {
	if text == "" {
		return time.Time{}, errors.Wrap(errors.ErrInvalidSince, "empty value")
	}

	if m := relativePattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, errors.Wrapf(errors.ErrInvalidSince, "parse %q", text)
		}

		var unit time.Duration
		switch m[2] {
		case "d":
			unit = 24 * time.Hour
		case "h":
			unit = time.Hour
		case "m":
			unit = time.Minute
		}
		return now.Add(-time.Duration(n) * unit), nil
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.Wrap(errors.ErrInvalidSince,
		fmt.Sprintf("%q is neither a duration shorthand (7d, 24h, 30m) nor a date/time", text))
}
