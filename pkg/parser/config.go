package parser

import (
	"regexp"

	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/pkg/errors"
)

// Default values of Config.
const (
	DefaultFilenamePattern = `access(.*)\.log`
	DefaultProgressLines   = 10000
)

var (
	defaultPageExtensions  = []string{"html", "htm"}
	defaultRobotSignatures = []string{"crawl", "msnbot"}
)

// Config is set of parsing and classification settings. It's given to
// importer at construction and not changed during a run.
type Config struct {
	Formats         map[models.LogFormat]*Format
	FilenamePattern string
	PageExtensions  []string
	RobotSignatures []string
	TimestampLayout string
	ProgressLines   int64
}

// DefaultConfig returns Config with built-in formats and default values.
func DefaultConfig() *Config {
	return &Config{
		Formats:         DefaultFormats(),
		FilenamePattern: DefaultFilenamePattern,
		PageExtensions:  append([]string{}, defaultPageExtensions...),
		RobotSignatures: append([]string{}, defaultRobotSignatures...),
		TimestampLayout: DefaultTimestampLayout,
		ProgressLines:   DefaultProgressLines,
	}
}

// Format looks up format by identifier.
func (x *Config) Format(id models.LogFormat) (*Format, error) {
	format, ok := x.Formats[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrInvalidFormat, "%d (available: %s)", int(id), models.LogFormatChoices())
	}
	return format, nil
}

// NewClassifier creates Classifier from page extensions and robot signatures.
func (x *Config) NewClassifier() *Classifier {
	return NewClassifier(x.PageExtensions, x.RobotSignatures)
}

// NewBuilder creates Builder of the format.
func (x *Config) NewBuilder(id models.LogFormat) (*Builder, error) {
	format, err := x.Format(id)
	if err != nil {
		return nil, err
	}

	layout := x.TimestampLayout
	if layout == "" {
		layout = DefaultTimestampLayout
	}

	return &Builder{
		format:     format,
		classifier: x.NewClassifier(),
		layout:     layout,
	}, nil
}

// CompileFilenamePattern compiles pattern of log file names. The pattern
// must match from beginning of base name. Empty pattern means
// Config.FilenamePattern.
func (x *Config) CompileFilenamePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = x.FilenamePattern
	}
	if pattern == "" {
		pattern = DefaultFilenamePattern
	}

	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to compile filename pattern: %s", pattern)
	}
	return re, nil
}
