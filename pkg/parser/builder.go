package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/pkg/errors"
)

var (
	// ErrNoMatch means a line does not match pattern of the format.
	ErrNoMatch = errors.New("Line does not match format")
	// ErrMalformedNumber means status or bytes field is not an integer.
	ErrMalformedNumber = errors.New("Malformed number")
)

// Builder converts a line to LogEntry according to a format.
type Builder struct {
	format     *Format
	classifier *Classifier
	layout     string
}

// Format returns the format of Builder.
func (x *Builder) Format() *Format { return x.format }

// ParseLine parses one line and builds LogEntry. ID and FileID are left empty.
// Every returned error is a line failure that should be counted and skipped.
// Invalid UTF-8 sequences are replaced with U+FFFD.
func (x *Builder) ParseLine(line string) (*models.LogEntry, error) {
	if !utf8.ValidString(line) {
		line = strings.ToValidUTF8(line, "\uFFFD")
	}
	fields, ok := x.format.Parse(line)
	if !ok {
		return nil, ErrNoMatch
	}
	return x.Build(fields)
}

// Build creates LogEntry from fields captured by the format.
func (x *Builder) Build(fields Fields) (*models.LogEntry, error) {
	ts, err := NormalizeTimestamp(fields[FieldTimestamp], x.layout)
	if err != nil {
		return nil, err
	}

	status, err := strconv.Atoi(fields[FieldStatus])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedNumber, "status: %q", fields[FieldStatus])
	}
	bytes, err := strconv.ParseInt(fields[FieldBytes], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedNumber, "bytes: %q", fields[FieldBytes])
	}

	entry := &models.LogEntry{
		Timestamp:     ts,
		RemoteHost:    fields[FieldRemoteAddr],
		ClientID:      fields[FieldClientID],
		UserID:        fields[FieldUserID],
		Request:       fields[FieldRequest],
		Status:        status,
		BytesReturned: bytes,
		Referer:       optionalField(fields, FieldReferer),
		UserAgent:     optionalField(fields, FieldUserAgent),
		SessionID:     optionalField(fields, FieldSessionID),
	}

	class, err := x.classifier.Classify(entry.Request, entry.UserAgent)
	if err != nil {
		return nil, err
	}
	entry.Path = class.Path
	entry.IsPage = class.IsPage
	entry.IsRobot = class.IsRobot

	return entry, nil
}

func optionalField(fields Fields, name string) *string {
	v, ok := fields[name]
	if !ok {
		return nil
	}
	return &v
}
