package models

import "time"

// ImportStatus is completion marker of LogFile.
type ImportStatus string

const (
	// ImportPending means the file is registered but import has not started.
	ImportPending ImportStatus = "pending"
	// ImportInProgress means import started and has not been committed yet. If a
	// LogFile is found in the state at start of import, the previous run was interrupted.
	ImportInProgress ImportStatus = "in_progress"
	// ImportCompleted means all lines are consumed and entries are committed.
	ImportCompleted ImportStatus = "completed"
)

// LogPath is a directory that contains log files.
type LogPath struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// LogFile is per-file import state. Identity is (PathID, Filename, Format).
type LogFile struct {
	ID        string       `json:"id"`
	PathID    string       `json:"path_id"`
	Filename  string       `json:"filename"`
	Format    LogFormat    `json:"format"`
	Status    ImportStatus `json:"status"`
	Errors    int64        `json:"errors"`
	ParsedAt  *time.Time   `json:"parsed_at"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Completed returns true if all entries of the file have been committed.
func (x *LogFile) Completed() bool {
	return x.Status == ImportCompleted
}

// Reset clears completion marker and error counter.
func (x *LogFile) Reset() {
	x.Status = ImportPending
	x.Errors = 0
	x.ParsedAt = nil
}

// LogFileSummary is LogFile with its directory and number of stored entries.
type LogFileSummary struct {
	LogFile
	Directory string `json:"directory"`
	Entries   int64  `json:"entries"`
}

// LogEntry is one classified line of access log. It's created once per
// successfully parsed line and never updated.
type LogEntry struct {
	ID            string    `json:"id"`
	FileID        string    `json:"file_id"`
	Timestamp     time.Time `json:"timestamp"`
	RemoteHost    string    `json:"remote_host"`
	ClientID      string    `json:"client_id"`
	UserID        string    `json:"user_id"`
	Request       string    `json:"request"`
	Path          string    `json:"path"`
	Status        int       `json:"status"`
	BytesReturned int64     `json:"bytes_returned"`
	Referer       *string   `json:"referer,omitempty"`
	UserAgent     *string   `json:"user_agent,omitempty"`
	SessionID     *string   `json:"session_id,omitempty"`
	IsPage        bool      `json:"is_page"`
	IsRobot       bool      `json:"is_robot"`
}
