package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimestampLayout is layout of local part of access log timestamp,
// e.g. "10/Oct/2000:13:55:36"
const DefaultTimestampLayout = "02/Jan/2006:15:04:05"

// ErrMalformedTimestamp means timestamp field can not be normalized.
var ErrMalformedTimestamp = errors.New("Malformed timestamp")

// NormalizeTimestamp converts "<local-timestamp> <+-HHMM>" to an instant in UTC.
func NormalizeTimestamp(raw, layout string) (time.Time, error) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return time.Time{}, errors.Wrapf(ErrMalformedTimestamp, "no offset: %q", raw)
	}

	offset, err := parseOffset(parts[1])
	if err != nil {
		return time.Time{}, err
	}

	local, err := time.Parse(layout, parts[0])
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrMalformedTimestamp, "%q: %v", raw, err)
	}

	// local is parsed as UTC clock, it's actually offset seconds ahead of UTC.
	return local.Add(-time.Duration(offset) * time.Second).UTC(), nil
}

// parseOffset converts 5 characters token such as "-0500" to seconds.
func parseOffset(token string) (int, error) {
	if len(token) != 5 {
		return 0, errors.Wrapf(ErrMalformedTimestamp, "invalid offset: %q", token)
	}

	var sign int
	switch token[0] {
	case '+':
		sign = 1
	case '-':
		sign = -1
	default:
		return 0, errors.Wrapf(ErrMalformedTimestamp, "invalid offset sign: %q", token)
	}

	for _, c := range token[1:] {
		if c < '0' || c > '9' {
			return 0, errors.Wrapf(ErrMalformedTimestamp, "invalid offset digits: %q", token)
		}
	}

	hours, _ := strconv.Atoi(token[1:3])
	minutes, _ := strconv.Atoi(token[3:5])
	if minutes >= 60 {
		return 0, errors.Wrapf(ErrMalformedTimestamp, "invalid offset minutes: %q", token)
	}

	return sign * (hours*3600 + minutes*60), nil
}
