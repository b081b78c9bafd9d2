package models

import "time"

// ImportAction is decision of importer for one file.
type ImportAction string

const (
	ActionImported ImportAction = "imported"
	ActionResumed  ImportAction = "resumed"
	ActionReparsed ImportAction = "reparsed"
	ActionSkipped  ImportAction = "skipped"
	ActionFailed   ImportAction = "failed"
)

// FileReport is result of importing one log file.
type FileReport struct {
	Path        string       `json:"path"`
	Format      LogFormat    `json:"format"`
	PathCreated bool         `json:"path_created"`
	Action      ImportAction `json:"action"`
	Purged      int64        `json:"purged"`
	Lines       int64        `json:"lines"`
	Entries     int64        `json:"entries"`
	Errors      int64        `json:"errors"`
	Error       string       `json:"error,omitempty"`
}

// RunReport is aggregated result of importing files in a directory.
type RunReport struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Files      []*FileReport `json:"files"`
}

// Count returns number of files having the action.
func (x *RunReport) Count(action ImportAction) int {
	n := 0
	for _, f := range x.Files {
		if f.Action == action {
			n++
		}
	}
	return n
}

// Failed returns true if any file in the run hit an unrecoverable failure.
func (x *RunReport) Failed() bool {
	return x.Count(ActionFailed) > 0
}
