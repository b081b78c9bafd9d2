package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/weblogparser/internal"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/pkg/errors"

	// DuckDB driver for database/sql
	_ "github.com/marcboeker/go-duckdb/v2"
)

// DuckDB is implementation of Repository with DuckDB database file.
type DuckDB struct {
	db *sql.DB
}

var schemaQueries = []string{
	`CREATE TABLE IF NOT EXISTS log_paths (
		id VARCHAR PRIMARY KEY,
		path VARCHAR NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS log_files (
		id VARCHAR PRIMARY KEY,
		path_id VARCHAR NOT NULL,
		filename VARCHAR NOT NULL,
		format INTEGER NOT NULL,
		status VARCHAR NOT NULL DEFAULT 'pending',
		errors BIGINT NOT NULL DEFAULT 0,
		parsed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (path_id, filename, format)
	)`,
	`CREATE TABLE IF NOT EXISTS log_entries (
		id VARCHAR PRIMARY KEY,
		file_id VARCHAR NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		remote_host VARCHAR NOT NULL,
		client_id VARCHAR NOT NULL,
		user_id VARCHAR NOT NULL,
		request VARCHAR NOT NULL,
		path VARCHAR NOT NULL,
		status INTEGER NOT NULL,
		bytes_returned BIGINT NOT NULL,
		referer VARCHAR,
		user_agent VARCHAR,
		session_id VARCHAR,
		is_page BOOLEAN NOT NULL,
		is_robot BOOLEAN NOT NULL
	)`,
	"CREATE INDEX IF NOT EXISTS idx_log_entries_file ON log_entries (file_id)",
	"CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp ON log_entries (timestamp)",
}

const (
	entryColumns = `id, file_id, timestamp, remote_host, client_id, user_id, request, path,
		status, bytes_returned, referer, user_agent, session_id, is_page, is_robot`
	fileColumns = "id, path_id, filename, format, status, errors, parsed_at, created_at, updated_at"
)

// NewDuckDB opens DuckDB database and creates tables if not exist. Empty dsn
// means in-memory database.
func NewDuckDB(dsn string) (*DuckDB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open database: %s", dsn)
	}

	repo := &DuckDB{db: db}
	if err := repo.InitializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// InitializeSchema creates tables and indexes if they don't exist.
func (x *DuckDB) InitializeSchema(ctx context.Context) error {
	for _, query := range schemaQueries {
		if _, err := x.db.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "Failed to initialize schema")
		}
	}
	return nil
}

// Close closes database.
func (x *DuckDB) Close() error {
	if err := x.db.Close(); err != nil {
		return errors.Wrap(err, "Failed to close database")
	}
	return nil
}

func (x *DuckDB) GetOrCreatePath(ctx context.Context, path string) (*models.LogPath, bool, error) {
	newID := uuid.New().String()
	if _, err := x.db.ExecContext(ctx,
		"INSERT INTO log_paths (id, path, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		newID, path, time.Now().UTC()); err != nil {
		return nil, false, errors.Wrapf(err, "Failed to insert path: %s", path)
	}

	var logPath models.LogPath
	if err := x.db.QueryRowContext(ctx,
		"SELECT id, path, created_at FROM log_paths WHERE path = ?", path).
		Scan(&logPath.ID, &logPath.Path, &logPath.CreatedAt); err != nil {
		return nil, false, errors.Wrapf(err, "Failed to get path: %s", path)
	}

	return &logPath, logPath.ID == newID, nil
}

func (x *DuckDB) GetOrCreateFile(ctx context.Context, pathID, filename string, format models.LogFormat) (*models.LogFile, bool, error) {
	newID := uuid.New().String()
	now := time.Now().UTC()
	if _, err := x.db.ExecContext(ctx,
		`INSERT INTO log_files (id, path_id, filename, format, status, errors, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?) ON CONFLICT DO NOTHING`,
		newID, pathID, filename, int(format), string(models.ImportPending), now, now); err != nil {
		return nil, false, errors.Wrapf(err, "Failed to insert file: %s", filename)
	}

	row := x.db.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM log_files WHERE path_id = ? AND filename = ? AND format = ?",
		pathID, filename, int(format))

	file, err := scanFile(row)
	if err != nil {
		return nil, false, errors.Wrapf(err, "Failed to get file: %s", filename)
	}

	return file, file.ID == newID, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner, extra ...interface{}) (*models.LogFile, error) {
	var file models.LogFile
	var format int
	var status string
	var parsedAt sql.NullTime

	dest := append([]interface{}{
		&file.ID, &file.PathID, &file.Filename, &format, &status, &file.Errors,
		&parsedAt, &file.CreatedAt, &file.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	file.Format = models.LogFormat(format)
	file.Status = models.ImportStatus(status)
	if parsedAt.Valid {
		t := parsedAt.Time.UTC()
		file.ParsedAt = &t
	}
	return &file, nil
}

func (x *DuckDB) DeleteEntries(ctx context.Context, file *models.LogFile) (int64, error) {
	result, err := x.db.ExecContext(ctx, "DELETE FROM log_entries WHERE file_id = ?", file.ID)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to delete entries of %s", file.Filename)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "Failed to get number of deleted entries")
	}
	return n, nil
}

func (x *DuckDB) SaveFile(ctx context.Context, file *models.LogFile) error {
	return updateFile(ctx, x.db, file)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func updateFile(ctx context.Context, db execer, file *models.LogFile) error {
	file.UpdatedAt = time.Now().UTC()

	var parsedAt interface{}
	if file.ParsedAt != nil {
		parsedAt = file.ParsedAt.UTC()
	}

	if _, err := db.ExecContext(ctx,
		"UPDATE log_files SET status = ?, errors = ?, parsed_at = ?, updated_at = ? WHERE id = ?",
		string(file.Status), file.Errors, parsedAt, file.UpdatedAt, file.ID); err != nil {
		return errors.Wrapf(err, "Failed to update file: %s", file.Filename)
	}
	return nil
}

func (x *DuckDB) ResetAll(ctx context.Context) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Failed to begin transaction")
	}
	defer tx.Rollback()

	for _, table := range []string{"log_entries", "log_files", "log_paths"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "Failed to delete %s", table)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "Failed to commit reset")
	}
	return nil
}

func (x *DuckDB) ListFiles(ctx context.Context) ([]*models.LogFileSummary, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT
			f.id, f.path_id, f.filename, f.format, f.status, f.errors, f.parsed_at, f.created_at, f.updated_at,
			p.path, (SELECT COUNT(*) FROM log_entries e WHERE e.file_id = f.id)
		FROM log_files f JOIN log_paths p ON p.id = f.path_id
		ORDER BY p.path, f.filename, f.format`)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list files")
	}
	defer rows.Close()

	var summaries []*models.LogFileSummary
	for rows.Next() {
		var dir string
		var entries int64
		file, err := scanFile(rows, &dir, &entries)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to scan file")
		}
		summaries = append(summaries, &models.LogFileSummary{
			LogFile:   *file,
			Directory: dir,
			Entries:   entries,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "Failed to iterate files")
	}
	return summaries, nil
}

func (x *DuckDB) CountEntries(ctx context.Context, filter *EntryFilter) (int64, error) {
	where, args := filter.where()

	var count int64
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_entries"+where, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "Failed to count entries")
	}
	return count, nil
}

func (x *DuckDB) CountDistinctSessions(ctx context.Context, filter *EntryFilter) (int64, error) {
	where, args := filter.where()

	var count int64
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT session_id) FROM log_entries"+where, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "Failed to count sessions")
	}
	return count, nil
}

func (x *DuckDB) EarliestTimestamp(ctx context.Context, filter *EntryFilter) (*time.Time, error) {
	where, args := filter.where()

	var ts sql.NullTime
	if err := x.db.QueryRowContext(ctx, "SELECT MIN(timestamp) FROM log_entries"+where, args...).Scan(&ts); err != nil {
		return nil, errors.Wrap(err, "Failed to get earliest timestamp")
	}
	if !ts.Valid {
		return nil, nil
	}

	t := ts.Time.UTC()
	return &t, nil
}

func (x *DuckDB) ScanEntries(ctx context.Context, filter *EntryFilter, callback func(entry *models.LogEntry) error) error {
	where, args := filter.where()
	query := "SELECT " + entryColumns + " FROM log_entries" + where + " ORDER BY timestamp, id"
	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "Failed to query entries")
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return errors.Wrap(err, "Failed to scan entry")
		}
		if err := callback(entry); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "Failed to iterate entries")
	}
	return nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func scanEntry(row rowScanner) (*models.LogEntry, error) {
	var entry models.LogEntry
	var referer, userAgent, sessionID sql.NullString

	if err := row.Scan(&entry.ID, &entry.FileID, &entry.Timestamp, &entry.RemoteHost,
		&entry.ClientID, &entry.UserID, &entry.Request, &entry.Path,
		&entry.Status, &entry.BytesReturned, &referer, &userAgent, &sessionID,
		&entry.IsPage, &entry.IsRobot); err != nil {
		return nil, err
	}

	entry.Timestamp = entry.Timestamp.UTC()
	entry.Referer = nullString(referer)
	entry.UserAgent = nullString(userAgent)
	entry.SessionID = nullString(sessionID)
	return &entry, nil
}

func (x *DuckDB) Begin(ctx context.Context, file *models.LogFile) (Batch, error) {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO log_entries ("+entryColumns+
		") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "Failed to prepare insert")
	}

	return &duckdbBatch{ctx: ctx, tx: tx, stmt: stmt, fileID: file.ID}, nil
}

type duckdbBatch struct {
	ctx    context.Context
	tx     *sql.Tx
	stmt   *sql.Stmt
	fileID string
	done   bool
}

func optionalArg(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func (x *duckdbBatch) Append(entry *models.LogEntry) error {
	if entry.FileID != x.fileID {
		return errors.Errorf("Entry of other file (%s) is appended to batch of %s", entry.FileID, x.fileID)
	}

	if _, err := x.stmt.ExecContext(x.ctx,
		entry.ID, entry.FileID, entry.Timestamp.UTC(), entry.RemoteHost,
		entry.ClientID, entry.UserID, entry.Request, entry.Path,
		entry.Status, entry.BytesReturned, optionalArg(entry.Referer),
		optionalArg(entry.UserAgent), optionalArg(entry.SessionID),
		entry.IsPage, entry.IsRobot); err != nil {
		return errors.Wrap(err, "Failed to insert entry")
	}
	return nil
}

func (x *duckdbBatch) Commit(file *models.LogFile) error {
	if err := updateFile(x.ctx, x.tx, file); err != nil {
		return err
	}

	x.stmt.Close()
	if err := x.tx.Commit(); err != nil {
		return errors.Wrap(err, "Failed to commit entries")
	}
	x.done = true
	return nil
}

func (x *duckdbBatch) Rollback() error {
	if x.done {
		return nil
	}
	x.done = true

	x.stmt.Close()
	if err := x.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return errors.Wrap(err, "Failed to rollback entries")
	}
	internal.Logger.WithField("file_id", x.fileID).Debug("Rolled back entries")
	return nil
}
