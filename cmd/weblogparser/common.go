package main

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/pkg/errors"
)

type arguments struct {
	DBPath    string
	LogLevel  string
	SentryDSN string
	SentryEnv string
	LockTable string
	AwsRegion string
}

func (x arguments) openRepository() (*repository.DuckDB, error) {
	return repository.NewDuckDB(x.DBPath)
}

func (x arguments) newLocker() (repository.Locker, error) {
	if x.LockTable == "" {
		return nil, nil
	}
	if x.AwsRegion == "" {
		return nil, errors.New("--aws-region is required with --lock-table")
	}
	return repository.NewDynamoLocker(x.AwsRegion, x.LockTable), nil
}

func printJSON(v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Failed to marshal output")
	}
	fmt.Println(string(raw))
	return nil
}

type timeRange struct {
	Start string
	End   string
}

// parse converts RFC3339 or YYYY-MM-DD to time. Empty end means now and empty
// start means 24 hours before end.
func (x timeRange) parse() (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if x.End != "" {
		t, err := parseTimeArg(x.End)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}

	start := end.Add(-24 * time.Hour)
	if x.Start != "" {
		t, err := parseTimeArg(x.Start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, errors.Errorf("start (%v) must be before end (%v)", start, end)
	}
	return start, end, nil
}

func parseTimeArg(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("Invalid time format (RFC3339 or YYYY-MM-DD): %s", v)
}
