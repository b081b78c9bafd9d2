package internal

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logger is shared by all packages of weblogparser. It can be replaced for testing.
var Logger = logrus.New()

// SetLogLevel changes level of Logger. Level name is case-insensitive and one
// of TRACE, DEBUG, INFO, WARN and ERROR. Empty string keeps current level.
func SetLogLevel(level string) error {
	switch strings.ToUpper(level) {
	case "":
		return nil
	case "TRACE":
		Logger.SetLevel(logrus.TraceLevel)
	case "DEBUG":
		Logger.SetLevel(logrus.DebugLevel)
	case "INFO":
		Logger.SetLevel(logrus.InfoLevel)
	case "WARN":
		Logger.SetLevel(logrus.WarnLevel)
	case "ERROR":
		Logger.SetLevel(logrus.ErrorLevel)
	default:
		return errors.Errorf("Invalid log level: %s", level)
	}
	return nil
}

// SetJSONLogFormat switches Logger output to JSON lines, used by long running server.
func SetJSONLogFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{})
}
