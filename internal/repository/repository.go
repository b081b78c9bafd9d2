package repository

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/weblogparser/pkg/models"
)

// Repository is storage of directories, per-file import state and log entries.
type Repository interface {
	// GetOrCreatePath returns LogPath of the directory and true if it's created now.
	GetOrCreatePath(ctx context.Context, path string) (*models.LogPath, bool, error)
	// GetOrCreateFile returns LogFile identified by (pathID, filename, format)
	// and true if it's created now. A new LogFile is pending.
	GetOrCreateFile(ctx context.Context, pathID, filename string, format models.LogFormat) (*models.LogFile, bool, error)
	// DeleteEntries removes all entries of the file and returns number of them.
	DeleteEntries(ctx context.Context, file *models.LogFile) (int64, error)
	// SaveFile updates status, errors and parsed timestamp of the file.
	SaveFile(ctx context.Context, file *models.LogFile) error
	// Begin starts an atomic batch of entries for the file.
	Begin(ctx context.Context, file *models.LogFile) (Batch, error)
	// ResetAll deletes all directories, files and entries.
	ResetAll(ctx context.Context) error

	ListFiles(ctx context.Context) ([]*models.LogFileSummary, error)
	CountEntries(ctx context.Context, filter *EntryFilter) (int64, error)
	CountDistinctSessions(ctx context.Context, filter *EntryFilter) (int64, error)
	EarliestTimestamp(ctx context.Context, filter *EntryFilter) (*time.Time, error)
	ScanEntries(ctx context.Context, filter *EntryFilter, callback func(entry *models.LogEntry) error) error

	Close() error
}

// Batch is unit of atomic write. Entries appended to Batch become visible
// only with the file state given to Commit. Rollback after Commit does nothing.
type Batch interface {
	Append(entry *models.LogEntry) error
	Commit(file *models.LogFile) error
	Rollback() error
}

// EntryFilter is condition of log entries. Zero value matches all entries.
// Start is inclusive and End is exclusive.
type EntryFilter struct {
	FileID  string
	Status  *int
	IsPage  *bool
	IsRobot *bool
	Start   *time.Time
	End     *time.Time
	Limit   int
}

// NewPageViewFilter returns filter of successful page views by human in [start, end).
// Both start and end can be nil.
func NewPageViewFilter(start, end *time.Time) *EntryFilter {
	status, isPage, isRobot := 200, true, false
	return &EntryFilter{
		Status:  &status,
		IsPage:  &isPage,
		IsRobot: &isRobot,
		Start:   start,
		End:     end,
	}
}

// Match returns true if entry satisfies the filter.
func (x *EntryFilter) Match(entry *models.LogEntry) bool {
	if x == nil {
		return true
	}

	switch {
	case x.FileID != "" && entry.FileID != x.FileID:
		return false
	case x.Status != nil && entry.Status != *x.Status:
		return false
	case x.IsPage != nil && entry.IsPage != *x.IsPage:
		return false
	case x.IsRobot != nil && entry.IsRobot != *x.IsRobot:
		return false
	case x.Start != nil && entry.Timestamp.Before(*x.Start):
		return false
	case x.End != nil && !entry.Timestamp.Before(*x.End):
		return false
	}
	return true
}

// where builds SQL condition of the filter.
func (x *EntryFilter) where() (string, []interface{}) {
	if x == nil {
		return "", nil
	}

	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if x.FileID != "" {
		add("file_id = ?", x.FileID)
	}
	if x.Status != nil {
		add("status = ?", *x.Status)
	}
	if x.IsPage != nil {
		add("is_page = ?", *x.IsPage)
	}
	if x.IsRobot != nil {
		add("is_robot = ?", *x.IsRobot)
	}
	if x.Start != nil {
		add("timestamp >= ?", x.Start.UTC())
	}
	if x.End != nil {
		add("timestamp < ?", x.End.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
