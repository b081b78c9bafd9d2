package internal

import (
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
)

var sentryEnabled = false

// InitErrorHandler enables sending errors to Sentry. Empty dsn disables it.
func InitErrorHandler(dsn, env string) error {
	if dsn == "" {
		sentryEnabled = false
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
	}); err != nil {
		return errors.Wrap(err, "Failed sentry.Init")
	}

	sentryEnabled = true
	return nil
}

// HandleError logs error and sends it to sentry if sentry configuration is available
func HandleError(err error) {
	r := Logger.WithError(err)

	if sentryEnabled {
		eventID := sentry.CaptureException(err)
		if eventID != nil {
			r = r.WithField("sentry.eventID", *eventID)
		}
	}

	r.Error("Error")
}

// FlushError flushs error to sentry
func FlushError() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}
