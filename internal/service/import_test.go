package service_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/m-mizutani/weblogparser/internal/adaptor"
	"github.com/m-mizutani/weblogparser/internal/mock"
	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/m-mizutani/weblogparser/internal/service"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/m-mizutani/weblogparser/pkg/parser"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLines = []string{
	`192.168.0.1 - - [10/Oct/2000:13:55:36 -0700] "GET /index.html HTTP/1.1" 200 2326 "-" "Mozilla/5.0" sess-a`,
	`192.168.0.1 - - [10/Oct/2000:13:55:37 -0700] "GET /style.css HTTP/1.1" 200 120 "/index.html" "Mozilla/5.0" sess-a`,
	`this is not an access log line`,
	`192.168.0.2 - - [10/Oct/2000:13:56:00 -0700] "GET /blog/ HTTP/1.1" 200 5120 "-" "Googlebot/2.1 crawl" sess-b`,
	`192.168.0.3 - - [10/Oct/2000:14:00:00 -0700] "GET /about HTTP/1.1" 200 800 "-" "Mozilla/5.0" sess-c`,
}

func writeLog(t *testing.T, dir, name string, lines []string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// cancelLocker cancels context when the first lock is released, i.e. after
// the first file is imported.
type cancelLocker struct {
	*mock.Locker
	cancel context.CancelFunc
}

func (x *cancelLocker) Lock(ctx context.Context, key string) (repository.ReleaseFunc, error) {
	release, err := x.Locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		x.cancel()
		return release(ctx)
	}, nil
}

func newImportService(repo repository.Repository) *service.ImportService {
	return service.NewImportService(repo, &adaptor.LocalSource{}, parser.DefaultConfig())
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeLog(t, dir, "access.log", testLines)
	opt := service.ImportOptions{}

	t.Run("first import", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)

		report, err := svc.ImportFile(ctx, path, models.LogFormatWithSession, opt)
		require.NoError(tt, err)
		assert.Equal(tt, models.ActionImported, report.Action)
		assert.True(tt, report.PathCreated)
		assert.Equal(tt, int64(5), report.Lines)
		assert.Equal(tt, int64(4), report.Entries)
		assert.Equal(tt, int64(1), report.Errors)

		files, err := repo.ListFiles(ctx)
		require.NoError(tt, err)
		require.Equal(tt, 1, len(files))
		assert.Equal(tt, dir, files[0].Directory)
		assert.Equal(tt, "access.log", files[0].Filename)
		assert.True(tt, files[0].Completed())
		assert.Equal(tt, int64(1), files[0].Errors)
		assert.Equal(tt, int64(4), files[0].Entries)
		assert.NotNil(tt, files[0].ParsedAt)
	})

	t.Run("second import performs no write", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)

		_, err := svc.ImportFile(ctx, path, models.LogFormatWithSession, opt)
		require.NoError(tt, err)
		writes := repo.Writes

		report, err := svc.ImportFile(ctx, path, models.LogFormatWithSession, opt)
		require.NoError(tt, err)
		assert.Equal(tt, models.ActionSkipped, report.Action)
		assert.False(tt, report.PathCreated)
		assert.Equal(tt, writes, repo.Writes)

		n, err := repo.CountEntries(ctx, nil)
		require.NoError(tt, err)
		assert.Equal(tt, int64(4), n)
	})

	t.Run("same file with other format is another import", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)

		_, err := svc.ImportFile(ctx, path, models.LogFormatWithSession, opt)
		require.NoError(tt, err)
		report, err := svc.ImportFile(ctx, path, models.LogFormatCommon, opt)
		require.NoError(tt, err)
		assert.Equal(tt, models.ActionImported, report.Action)

		files, err := repo.ListFiles(ctx)
		require.NoError(tt, err)
		assert.Equal(tt, 2, len(files))
	})

	t.Run("failed import is rolled back and resumed", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)

		repo.FailAppendAfter = 2
		report, err := svc.ImportFile(ctx, path, models.LogFormatWithSession, opt)
		require.Error(tt, err)
		assert.Equal(tt, mock.ErrInjected, errors.Cause(err))
		assert.Equal(tt, models.ActionFailed, report.Action)
		assert.NotEmpty(tt, report.Error)

		files, err := repo.ListFiles(ctx)
		require.NoError(tt, err)
		require.Equal(tt, 1, len(files))
		assert.Equal(tt, models.ImportInProgress, files[0].Status)
		assert.Equal(tt, int64(0), files[0].Entries)

		repo.FailAppendAfter = 0
		report, err = svc.ImportFile(ctx, path, models.LogFormatWithSession, opt)
		require.NoError(tt, err)
		assert.Equal(tt, models.ActionResumed, report.Action)
		assert.Equal(tt, int64(4), report.Entries)

		n, err := repo.CountEntries(ctx, nil)
		require.NoError(tt, err)
		assert.Equal(tt, int64(4), n)
	})

	t.Run("commit failure keeps file incomplete", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)

		repo.FailCommit = true
		_, err := svc.ImportFile(ctx, path, models.LogFormatWithSession, opt)
		require.Error(tt, err)

		files, err := repo.ListFiles(ctx)
		require.NoError(tt, err)
		require.Equal(tt, 1, len(files))
		assert.False(tt, files[0].Completed())
		assert.Equal(tt, int64(0), files[0].Entries)
	})

	t.Run("reparse regenerates entries", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)
		local := t.TempDir()
		target := writeLog(tt, local, "access.log", testLines[:2])

		_, err := svc.ImportFile(ctx, target, models.LogFormatWithSession, opt)
		require.NoError(tt, err)

		writeLog(tt, local, "access.log", testLines)
		report, err := svc.ImportFile(ctx, target, models.LogFormatWithSession, opt)
		require.NoError(tt, err)
		assert.Equal(tt, models.ActionSkipped, report.Action)

		report, err = svc.ImportFile(ctx, target, models.LogFormatWithSession, service.ImportOptions{Reparse: true})
		require.NoError(tt, err)
		assert.Equal(tt, models.ActionReparsed, report.Action)
		assert.Equal(tt, int64(2), report.Purged)
		assert.Equal(tt, int64(4), report.Entries)

		n, err := repo.CountEntries(ctx, nil)
		require.NoError(tt, err)
		assert.Equal(tt, int64(4), n)
	})

	t.Run("canceled context", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		report, err := svc.ImportFile(canceled, path, models.LogFormatWithSession, opt)
		require.Error(tt, err)
		assert.Equal(tt, models.ActionFailed, report.Action)

		n, err := repo.CountEntries(ctx, nil)
		require.NoError(tt, err)
		assert.Equal(tt, int64(0), n)
	})

	t.Run("lock is acquired and released", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)
		locker := mock.NewLocker()
		svc.SetLocker(locker)

		_, err := svc.ImportFile(ctx, path, models.LogFormatWithSession, opt)
		require.NoError(tt, err)
		require.Equal(tt, 1, len(locker.Acquired))
		assert.False(tt, locker.Held(locker.Acquired[0]))
	})

	t.Run("held lock fails import", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)
		locker := mock.NewLocker()
		svc.SetLocker(locker)

		_, err := svc.ImportFile(ctx, path, models.LogFormatWithSession, opt)
		require.NoError(tt, err)
		key := locker.Acquired[0]
		_, err = locker.Lock(ctx, key)
		require.NoError(tt, err)

		_, err = svc.ImportFile(ctx, path, models.LogFormatWithSession, service.ImportOptions{Reparse: true})
		require.Error(tt, err)
		assert.Equal(tt, repository.ErrLockConflict, errors.Cause(err))
	})
}

func TestImportRun(t *testing.T) {
	ctx := context.Background()

	t.Run("directory run imports only matched files", func(tt *testing.T) {
		dir := t.TempDir()
		writeLog(tt, dir, "access.log", testLines)
		writeLog(tt, dir, "error.log", testLines)
		require.NoError(tt, os.Mkdir(filepath.Join(dir, "access-dir.log"), 0755))

		repo := mock.NewRepository()
		svc := newImportService(repo)
		report, err := svc.Run(ctx, &service.ImportRequest{
			Directory: dir,
			Format:    models.LogFormatWithSession,
		})
		require.NoError(tt, err)
		require.Equal(tt, 1, len(report.Files))
		assert.Equal(tt, filepath.Join(dir, "access.log"), report.Files[0].Path)
		assert.False(tt, report.Failed())
	})

	t.Run("symbolic link to log file is imported", func(tt *testing.T) {
		dir := t.TempDir()
		target := writeLog(tt, dir, "rotated-1.txt", testLines)
		require.NoError(tt, os.Symlink(target, filepath.Join(dir, "access.log")))
		require.NoError(tt, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "access-broken.log")))

		repo := mock.NewRepository()
		svc := newImportService(repo)
		report, err := svc.ImportDirectory(ctx, dir, "", models.LogFormatWithSession, service.ImportOptions{})
		require.NoError(tt, err)
		require.Equal(tt, 1, len(report.Files))
		assert.Equal(tt, filepath.Join(dir, "access.log"), report.Files[0].Path)
		assert.Equal(tt, models.ActionImported, report.Files[0].Action)
		assert.Equal(tt, int64(4), report.Files[0].Entries)
	})

	t.Run("canceled run returns reports of processed files", func(tt *testing.T) {
		dir := t.TempDir()
		writeLog(tt, dir, "access-1.log", testLines)
		writeLog(tt, dir, "access-2.log", testLines)

		canceled, cancel := context.WithCancel(ctx)
		defer cancel()

		repo := mock.NewRepository()
		svc := newImportService(repo)
		svc.SetLocker(&cancelLocker{Locker: mock.NewLocker(), cancel: cancel})

		report, err := svc.ImportDirectory(canceled, dir, "", models.LogFormatWithSession, service.ImportOptions{})
		require.Error(tt, err)
		assert.Equal(tt, context.Canceled, errors.Cause(err))
		require.NotNil(tt, report)
		require.Equal(tt, 1, len(report.Files))
		assert.Equal(tt, filepath.Join(dir, "access-1.log"), report.Files[0].Path)
		assert.Equal(tt, models.ActionImported, report.Files[0].Action)
		assert.False(tt, report.FinishedAt.IsZero())
	})

	t.Run("one failed file does not stop others", func(tt *testing.T) {
		dir := t.TempDir()
		writeLog(tt, dir, "access-1.log", testLines)
		writeLog(tt, dir, "access-2.log", testLines)
		writeLog(tt, dir, "access-3.log.gz", testLines)

		repo := mock.NewRepository()
		svc := newImportService(repo)
		report, err := svc.ImportDirectory(ctx, dir, "", models.LogFormatWithSession, service.ImportOptions{})
		require.NoError(tt, err)
		require.Equal(tt, 3, len(report.Files))
		assert.Equal(tt, 2, report.Count(models.ActionImported))
		assert.Equal(tt, 1, report.Count(models.ActionFailed))
		assert.True(tt, report.Failed())
		assert.Equal(tt, models.ActionFailed, report.Files[2].Action)
	})

	t.Run("file has priority over directory", func(tt *testing.T) {
		dir := t.TempDir()
		path := writeLog(tt, dir, "custom.txt", testLines)

		repo := mock.NewRepository()
		svc := newImportService(repo)
		report, err := svc.Run(ctx, &service.ImportRequest{
			File:      path,
			Directory: "/not/exist",
			Format:    models.LogFormatCommon,
		})
		require.NoError(tt, err)
		require.Equal(tt, 1, len(report.Files))
		assert.Equal(tt, int64(4), report.Files[0].Entries)
	})

	t.Run("configuration errors", func(tt *testing.T) {
		repo := mock.NewRepository()
		svc := newImportService(repo)

		_, err := svc.Run(ctx, &service.ImportRequest{Format: models.LogFormatCommon})
		assert.Equal(tt, models.ErrNoImportTarget, errors.Cause(err))

		_, err = svc.Run(ctx, &service.ImportRequest{File: "/no/such/access.log"})
		assert.Equal(tt, models.ErrFileNotFound, errors.Cause(err))

		_, err = svc.Run(ctx, &service.ImportRequest{Directory: t.TempDir(), Format: models.LogFormat(5)})
		assert.Equal(tt, models.ErrInvalidFormat, errors.Cause(err))

		_, err = svc.Run(ctx, &service.ImportRequest{Directory: t.TempDir(), Pattern: "access("})
		assert.Error(tt, err)

		assert.Equal(tt, 0, repo.Writes)
	})
}

func TestImportWithDuckDB(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeLog(t, dir, "access.log", testLines)
	writeLog(t, dir, "other.log", testLines)

	repo, err := repository.NewDuckDB(filepath.Join(dir, "weblog.duckdb"))
	require.NoError(t, err)
	defer repo.Close()

	svc := newImportService(repo)
	req := &service.ImportRequest{Directory: dir, Format: models.LogFormatWithSession}

	report, err := svc.Run(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 1, len(report.Files))
	assert.Equal(t, models.ActionImported, report.Files[0].Action)

	report, err = svc.Run(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 1, len(report.Files))
	assert.Equal(t, models.ActionSkipped, report.Files[0].Action)

	req.Reparse = true
	report, err = svc.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.ActionReparsed, report.Files[0].Action)
	assert.Equal(t, int64(4), report.Files[0].Purged)

	n, err := repo.CountEntries(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestImportInvalidUTF8WithDuckDB(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeLog(t, dir, "access.log", []string{
		testLines[0],
		"192.168.0.9 - - [10/Oct/2000:13:55:40 -0700] \"GET /caf\xe9.html HTTP/1.1\" 200 10 \"-\" \"Agent\xff\" sess-x",
		testLines[3],
	})

	repo, err := repository.NewDuckDB("")
	require.NoError(t, err)
	defer repo.Close()

	svc := newImportService(repo)
	report, err := svc.ImportFile(ctx, path, models.LogFormatWithSession, service.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.ActionImported, report.Action)
	assert.Equal(t, int64(3), report.Entries)
	assert.Equal(t, int64(0), report.Errors)

	var paths []string
	err = repo.ScanEntries(ctx, nil, func(entry *models.LogEntry) error {
		paths = append(paths, entry.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, paths, "/caf\uFFFD.html")
}

func TestImportFromS3(t *testing.T) {
	ctx := context.Background()
	client := mock.NewS3Client()
	client.PageSize = 1

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(strings.Join(testLines, "\n")))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	client.Put("logs", "web/access-2020.log.gz", buf.Bytes())
	client.Put("logs", "web/access-2021.log", []byte(strings.Join(testLines[:2], "\n")))
	client.Put("logs", "web/error.log", []byte(strings.Join(testLines, "\n")))
	client.Put("logs", "web/nested/access.log", []byte(strings.Join(testLines, "\n")))

	source := adaptor.NewSource("s3://logs/web", "ap-northeast-1", mock.NewS3ClientFactory(client))
	repo := mock.NewRepository()
	svc := service.NewImportService(repo, source, nil)

	report, err := svc.Run(ctx, &service.ImportRequest{
		Directory: "s3://logs/web",
		Format:    models.LogFormatWithSession,
	})
	require.NoError(t, err)
	require.Equal(t, 2, len(report.Files))
	assert.Equal(t, "s3://logs/web/access-2020.log.gz", report.Files[0].Path)
	assert.Equal(t, int64(4), report.Files[0].Entries)
	assert.Equal(t, "s3://logs/web/access-2021.log", report.Files[1].Path)
	assert.Equal(t, int64(2), report.Files[1].Entries)

	files, err := repo.ListFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, len(files))
	assert.Equal(t, "s3://logs/web", files[0].Directory)
}
