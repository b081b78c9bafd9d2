package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// LogFormat identifies one of the supported access log line grammars.
type LogFormat int

const (
	// LogFormatCommon is NCSA Common Log Format (CLF)
	LogFormatCommon LogFormat = 0
	// LogFormatExtended is CLF with referer and user agent (a.k.a. combined)
	LogFormatExtended LogFormat = 1
	// LogFormatWithSession is extended format followed by a session ID token.
	// It requires tweaking the log format of the web server.
	LogFormatWithSession LogFormat = 2
)

// DefaultLogFormat is used when no format is specified.
const DefaultLogFormat = LogFormatExtended

var logFormatNames = map[LogFormat]string{
	LogFormatCommon:      "Common (CLF)",
	LogFormatExtended:    "Extended",
	LogFormatWithSession: "Extended with session ID",
}

func (x LogFormat) String() string {
	if name, ok := logFormatNames[x]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(x))
}

// Valid returns true if the format is one of the enumerated formats.
func (x LogFormat) Valid() bool {
	_, ok := logFormatNames[x]
	return ok
}

// NewLogFormat converts numeric identifier (e.g. --format option) to LogFormat.
func NewLogFormat(id int) (LogFormat, error) {
	format := LogFormat(id)
	if !format.Valid() {
		return 0, errors.Wrapf(ErrInvalidFormat, "%d (available: %s)", id, LogFormatChoices())
	}
	return format, nil
}

// LogFormatChoices returns human readable list of formats such as "0 - Common (CLF), 1 - ..."
func LogFormatChoices() string {
	var ids []int
	for f := range logFormatNames {
		ids = append(ids, int(f))
	}
	sort.Ints(ids)

	var choices []string
	for _, id := range ids {
		choices = append(choices, fmt.Sprintf("%d - %s", id, logFormatNames[LogFormat(id)]))
	}
	return strings.Join(choices, ", ")
}
