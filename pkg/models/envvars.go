package models

import (
	env "github.com/Netflix/go-env"
	"github.com/pkg/errors"
)

// EnvVars has settings that can be given by environment variables. They are
// used as default values of command line options.
type EnvVars struct {
	DBPath        string `env:"WEBLOG_DB_PATH"`
	LogLevel      string `env:"LOG_LEVEL"`
	SentryDSN     string `env:"SENTRY_DSN"`
	SentryEnv     string `env:"SENTRY_ENVIRONMENT"`
	AwsRegion     string `env:"AWS_REGION"`
	LockTableName string `env:"WEBLOG_LOCK_TABLE"`
}

// BindEnvVars loads environments variables and set them to EnvVars
func (x *EnvVars) BindEnvVars() error {
	if _, err := env.UnmarshalFromEnviron(x); err != nil {
		return errors.Wrap(err, "Failed UnmarshalFromEnviron")
	}

	return nil
}
