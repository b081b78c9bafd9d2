package parser

import (
	"regexp"

	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/pkg/errors"
)

// Field names captured by patterns.
const (
	FieldRemoteAddr = "remoteaddr"
	FieldClientID   = "clientid"
	FieldUserID     = "userid"
	FieldTimestamp  = "timestamp"
	FieldRequest    = "request"
	FieldStatus     = "status"
	FieldBytes      = "bytes"
	FieldReferer    = "referer"
	FieldUserAgent  = "useragent"
	FieldSessionID  = "sessionid"
)

// Fields is mapping from field name to raw captured string of one line.
type Fields map[string]string

// Format is a line grammar: a pattern with named capture groups and the list
// of fields that the pattern guarantees.
type Format struct {
	ID      models.LogFormat
	Pattern string
	Fields  []string

	re    *regexp.Regexp
	index []int
}

// NewFormat compiles pattern as a line-anchored regular expression. All
// declared fields must exist as named groups in the pattern.
func NewFormat(id models.LogFormat, pattern string, fields []string) (*Format, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to compile pattern of format %v", id)
	}

	format := &Format{
		ID:      id,
		Pattern: pattern,
		Fields:  fields,
		re:      re,
	}

	for _, field := range fields {
		idx := re.SubexpIndex(field)
		if idx < 0 {
			return nil, errors.Errorf("Field '%s' is not captured by pattern of format %v", field, id)
		}
		format.index = append(format.index, idx)
	}

	return format, nil
}

func mustNewFormat(id models.LogFormat, pattern string, fields []string) *Format {
	format, err := NewFormat(id, pattern, fields)
	if err != nil {
		panic(err)
	}
	return format
}

// Parse applies the pattern to one line. It returns all declared fields on
// match or false if the line can not be parsed.
func (x *Format) Parse(line string) (Fields, bool) {
	matched := x.re.FindStringSubmatch(line)
	if matched == nil {
		return nil, false
	}

	fields := make(Fields, len(x.Fields))
	for i, name := range x.Fields {
		fields[name] = matched[x.index[i]]
	}
	return fields, true
}

// Has returns true if the format declares the field.
func (x *Format) Has(field string) bool {
	for _, f := range x.Fields {
		if f == field {
			return true
		}
	}
	return false
}

const (
	commonPattern    = `(?P<remoteaddr>\S+) (?P<clientid>\S+) (?P<userid>\S+) \[(?P<timestamp>[^\]]+)\] "(?P<request>[^"]+)" (?P<status>\d+) (?P<bytes>\d+)`
	extendedPattern  = commonPattern + ` "(?P<referer>[^"]*)" "(?P<useragent>[^"]*)"`
	sessionIDPattern = extendedPattern + ` (?P<sessionid>\S+)`
)

var (
	commonFields    = []string{FieldRemoteAddr, FieldClientID, FieldUserID, FieldTimestamp, FieldRequest, FieldStatus, FieldBytes}
	extendedFields  = append(append([]string{}, commonFields...), FieldReferer, FieldUserAgent)
	sessionIDFields = append(append([]string{}, extendedFields...), FieldSessionID)
)

// DefaultFormats returns built-in formats. A new format is added here as a
// pattern and its field list.
func DefaultFormats() map[models.LogFormat]*Format {
	return map[models.LogFormat]*Format{
		models.LogFormatCommon:      mustNewFormat(models.LogFormatCommon, commonPattern, commonFields),
		models.LogFormatExtended:    mustNewFormat(models.LogFormatExtended, extendedPattern, extendedFields),
		models.LogFormatWithSession: mustNewFormat(models.LogFormatWithSession, sessionIDPattern, sessionIDFields),
	}
}
