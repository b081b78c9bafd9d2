package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *repository.DuckDB {
	repo, err := repository.NewDuckDB("")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newEntry(file *models.LogFile, ts time.Time, status int, isPage, isRobot bool, session string) *models.LogEntry {
	entry := &models.LogEntry{
		ID:            uuid.New().String(),
		FileID:        file.ID,
		Timestamp:     ts,
		RemoteHost:    "10.0.0.1",
		ClientID:      "-",
		UserID:        "-",
		Request:       "GET / HTTP/1.1",
		Path:          "/",
		Status:        status,
		BytesReturned: 128,
		IsPage:        isPage,
		IsRobot:       isRobot,
	}
	if session != "" {
		entry.SessionID = &session
	}
	return entry
}

func TestDuckDBGetOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t)

	p1, created, err := repo.GetOrCreatePath(ctx, "/var/log/httpd")
	require.NoError(t, err)
	assert.True(t, created)

	p2, created, err := repo.GetOrCreatePath(ctx, "/var/log/httpd")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p1.ID, p2.ID)

	f1, created, err := repo.GetOrCreateFile(ctx, p1.ID, "access.log", models.LogFormatExtended)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.ImportPending, f1.Status)
	assert.Nil(t, f1.ParsedAt)

	f2, created, err := repo.GetOrCreateFile(ctx, p1.ID, "access.log", models.LogFormatExtended)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f1.ID, f2.ID)

	f3, created, err := repo.GetOrCreateFile(ctx, p1.ID, "access.log", models.LogFormatCommon)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, f1.ID, f3.ID)
}

func TestDuckDBBatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t)
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	p, _, err := repo.GetOrCreatePath(ctx, "/logs")
	require.NoError(t, err)
	file, _, err := repo.GetOrCreateFile(ctx, p.ID, "access.log", models.LogFormatWithSession)
	require.NoError(t, err)

	t.Run("rollback discards entries", func(tt *testing.T) {
		batch, err := repo.Begin(ctx, file)
		require.NoError(tt, err)
		require.NoError(tt, batch.Append(newEntry(file, base, 200, true, false, "s1")))
		require.NoError(tt, batch.Rollback())

		n, err := repo.CountEntries(ctx, &repository.EntryFilter{FileID: file.ID})
		require.NoError(tt, err)
		assert.Equal(tt, int64(0), n)
	})

	t.Run("commit stores entries and file state", func(tt *testing.T) {
		batch, err := repo.Begin(ctx, file)
		require.NoError(tt, err)
		require.NoError(tt, batch.Append(newEntry(file, base, 200, true, false, "s1")))
		require.NoError(tt, batch.Append(newEntry(file, base.Add(time.Hour), 200, true, false, "s2")))
		require.NoError(tt, batch.Append(newEntry(file, base.Add(2*time.Hour), 200, true, true, "s3")))
		require.NoError(tt, batch.Append(newEntry(file, base.Add(3*time.Hour), 404, true, false, "s4")))
		require.NoError(tt, batch.Append(newEntry(file, base.Add(4*time.Hour), 200, false, false, "s1")))

		parsedAt := time.Now().UTC()
		file.Status = models.ImportCompleted
		file.Errors = 3
		file.ParsedAt = &parsedAt
		require.NoError(tt, batch.Commit(file))
		require.NoError(tt, batch.Rollback())

		stored, created, err := repo.GetOrCreateFile(ctx, p.ID, "access.log", models.LogFormatWithSession)
		require.NoError(tt, err)
		assert.False(tt, created)
		assert.True(tt, stored.Completed())
		assert.Equal(tt, int64(3), stored.Errors)
		require.NotNil(tt, stored.ParsedAt)

		n, err := repo.CountEntries(ctx, nil)
		require.NoError(tt, err)
		assert.Equal(tt, int64(5), n)
	})

	t.Run("read side", func(tt *testing.T) {
		end := base.Add(24 * time.Hour)
		filter := repository.NewPageViewFilter(&base, &end)

		n, err := repo.CountEntries(ctx, filter)
		require.NoError(tt, err)
		assert.Equal(tt, int64(2), n)

		sessions, err := repo.CountDistinctSessions(ctx, filter)
		require.NoError(tt, err)
		assert.Equal(tt, int64(2), sessions)

		narrowEnd := base.Add(time.Hour)
		n, err = repo.CountEntries(ctx, repository.NewPageViewFilter(&base, &narrowEnd))
		require.NoError(tt, err)
		assert.Equal(tt, int64(1), n)

		earliest, err := repo.EarliestTimestamp(ctx, filter)
		require.NoError(tt, err)
		require.NotNil(tt, earliest)
		assert.Equal(tt, base, *earliest)

		var entries []*models.LogEntry
		require.NoError(tt, repo.ScanEntries(ctx, &repository.EntryFilter{FileID: file.ID, Limit: 3}, func(e *models.LogEntry) error {
			entries = append(entries, e)
			return nil
		}))
		require.Equal(tt, 3, len(entries))
		assert.Equal(tt, base, entries[0].Timestamp)
		require.NotNil(tt, entries[0].SessionID)
		assert.Equal(tt, "s1", *entries[0].SessionID)
		assert.Nil(tt, entries[0].Referer)

		files, err := repo.ListFiles(ctx)
		require.NoError(tt, err)
		require.Equal(tt, 1, len(files))
		assert.Equal(tt, "/logs", files[0].Directory)
		assert.Equal(tt, int64(5), files[0].Entries)
	})

	t.Run("delete entries", func(tt *testing.T) {
		n, err := repo.DeleteEntries(ctx, file)
		require.NoError(tt, err)
		assert.Equal(tt, int64(5), n)

		earliest, err := repo.EarliestTimestamp(ctx, nil)
		require.NoError(tt, err)
		assert.Nil(tt, earliest)
	})

	t.Run("reset all", func(tt *testing.T) {
		require.NoError(tt, repo.ResetAll(ctx))
		files, err := repo.ListFiles(ctx)
		require.NoError(tt, err)
		assert.Equal(tt, 0, len(files))
	})
}

func TestEntryFilterMatch(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := base.Add(time.Hour)
	filter := repository.NewPageViewFilter(&base, &end)
	file := &models.LogFile{ID: "f1"}

	assert.True(t, filter.Match(newEntry(file, base, 200, true, false, "")))
	assert.False(t, filter.Match(newEntry(file, end, 200, true, false, "")))
	assert.False(t, filter.Match(newEntry(file, base, 500, true, false, "")))
	assert.False(t, filter.Match(newEntry(file, base, 200, false, false, "")))
	assert.False(t, filter.Match(newEntry(file, base, 200, true, true, "")))

	var nilFilter *repository.EntryFilter
	assert.True(t, nilFilter.Match(newEntry(file, base, 500, false, true, "")))
}
