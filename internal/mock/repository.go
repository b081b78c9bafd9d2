package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/pkg/errors"
)

// ErrInjected is returned by Repository when failure injection is triggered.
var ErrInjected = errors.New("Injected failure")

// Repository is on memory implementation of repository.Repository
type Repository struct {
	// FailAppendAfter makes Append fail when the batch already has the number
	// of entries. Zero disables it.
	FailAppendAfter int
	// FailCommit makes Commit of batch fail.
	FailCommit bool

	// Writes counts mutating operations (insert, update and delete).
	Writes int

	paths   map[string]*models.LogPath
	files   map[string]*models.LogFile
	entries map[string][]*models.LogEntry
	mutex   sync.Mutex
}

// NewRepository is constructor of mock Repository
func NewRepository() *Repository {
	return &Repository{
		paths:   map[string]*models.LogPath{},
		files:   map[string]*models.LogFile{},
		entries: map[string][]*models.LogEntry{},
	}
}

func fileKey(pathID, filename string, format models.LogFormat) string {
	return pathID + "/" + filename + "/" + format.String()
}

func (x *Repository) GetOrCreatePath(ctx context.Context, path string) (*models.LogPath, bool, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if p, ok := x.paths[path]; ok {
		copied := *p
		return &copied, false, nil
	}

	p := &models.LogPath{ID: uuid.New().String(), Path: path, CreatedAt: time.Now().UTC()}
	x.paths[path] = p
	x.Writes++
	copied := *p
	return &copied, true, nil
}

func (x *Repository) GetOrCreateFile(ctx context.Context, pathID, filename string, format models.LogFormat) (*models.LogFile, bool, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	key := fileKey(pathID, filename, format)
	if f, ok := x.files[key]; ok {
		copied := *f
		return &copied, false, nil
	}

	now := time.Now().UTC()
	f := &models.LogFile{
		ID:        uuid.New().String(),
		PathID:    pathID,
		Filename:  filename,
		Format:    format,
		Status:    models.ImportPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	x.files[key] = f
	x.Writes++
	copied := *f
	return &copied, true, nil
}

func (x *Repository) DeleteEntries(ctx context.Context, file *models.LogFile) (int64, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	n := int64(len(x.entries[file.ID]))
	delete(x.entries, file.ID)
	x.Writes++
	return n, nil
}

func (x *Repository) saveFile(file *models.LogFile) error {
	key := fileKey(file.PathID, file.Filename, file.Format)
	if _, ok := x.files[key]; !ok {
		return errors.Errorf("File not found: %s", file.Filename)
	}

	file.UpdatedAt = time.Now().UTC()
	copied := *file
	x.files[key] = &copied
	x.Writes++
	return nil
}

func (x *Repository) SaveFile(ctx context.Context, file *models.LogFile) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.saveFile(file)
}

func (x *Repository) Begin(ctx context.Context, file *models.LogFile) (repository.Batch, error) {
	return &batch{repo: x, fileID: file.ID}, nil
}

func (x *Repository) ResetAll(ctx context.Context) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.paths = map[string]*models.LogPath{}
	x.files = map[string]*models.LogFile{}
	x.entries = map[string][]*models.LogEntry{}
	x.Writes++
	return nil
}

// File returns stored state of the file by ID.
func (x *Repository) File(fileID string) *models.LogFile {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	for _, f := range x.files {
		if f.ID == fileID {
			copied := *f
			return &copied
		}
	}
	return nil
}

func (x *Repository) ListFiles(ctx context.Context) ([]*models.LogFileSummary, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	dirs := map[string]string{}
	for _, p := range x.paths {
		dirs[p.ID] = p.Path
	}

	var summaries []*models.LogFileSummary
	for _, f := range x.files {
		summaries = append(summaries, &models.LogFileSummary{
			LogFile:   *f,
			Directory: dirs[f.PathID],
			Entries:   int64(len(x.entries[f.ID])),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Directory != b.Directory {
			return a.Directory < b.Directory
		}
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.Format < b.Format
	})
	return summaries, nil
}

func (x *Repository) filter(filter *repository.EntryFilter) []*models.LogEntry {
	var matched []*models.LogEntry
	for _, entries := range x.entries {
		for _, e := range entries {
			if filter.Match(e) {
				matched = append(matched, e)
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.Before(matched[j].Timestamp)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

func (x *Repository) CountEntries(ctx context.Context, filter *repository.EntryFilter) (int64, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return int64(len(x.filter(filter))), nil
}

func (x *Repository) CountDistinctSessions(ctx context.Context, filter *repository.EntryFilter) (int64, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	sessions := map[string]struct{}{}
	for _, e := range x.filter(filter) {
		if e.SessionID != nil {
			sessions[*e.SessionID] = struct{}{}
		}
	}
	return int64(len(sessions)), nil
}

func (x *Repository) EarliestTimestamp(ctx context.Context, filter *repository.EntryFilter) (*time.Time, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	matched := x.filter(filter)
	if len(matched) == 0 {
		return nil, nil
	}
	ts := matched[0].Timestamp
	return &ts, nil
}

func (x *Repository) ScanEntries(ctx context.Context, filter *repository.EntryFilter, callback func(entry *models.LogEntry) error) error {
	x.mutex.Lock()
	matched := x.filter(filter)
	x.mutex.Unlock()

	if filter != nil && filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	for _, e := range matched {
		copied := *e
		if err := callback(&copied); err != nil {
			return err
		}
	}
	return nil
}

func (x *Repository) Close() error { return nil }

type batch struct {
	repo    *Repository
	fileID  string
	entries []*models.LogEntry
	done    bool
}

func (x *batch) Append(entry *models.LogEntry) error {
	if x.done {
		return errors.New("Batch is already closed")
	}
	if x.repo.FailAppendAfter > 0 && len(x.entries) >= x.repo.FailAppendAfter {
		return errors.Wrap(ErrInjected, "Append")
	}

	copied := *entry
	x.entries = append(x.entries, &copied)
	return nil
}

func (x *batch) Commit(file *models.LogFile) error {
	if x.done {
		return errors.New("Batch is already closed")
	}
	if x.repo.FailCommit {
		return errors.Wrap(ErrInjected, "Commit")
	}

	x.repo.mutex.Lock()
	defer x.repo.mutex.Unlock()

	if err := x.repo.saveFile(file); err != nil {
		return err
	}
	x.repo.entries[x.fileID] = append(x.repo.entries[x.fileID], x.entries...)
	x.repo.Writes += len(x.entries)
	x.done = true
	return nil
}

func (x *batch) Rollback() error {
	x.done = true
	x.entries = nil
	return nil
}
