package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/weblogparser/internal/mock"
	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/m-mizutani/weblogparser/internal/service"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportService(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeLog(t, dir, "access.log", testLines)

	repo := mock.NewRepository()
	_, err := newImportService(repo).ImportFile(ctx, path, models.LogFormatWithSession, service.ImportOptions{})
	require.NoError(t, err)

	t.Run("export to local file", func(tt *testing.T) {
		dst := filepath.Join(t.TempDir(), "entries.parquet")
		svc := service.NewExportService(repo, nil)

		n, err := svc.Export(ctx, nil, dst, "")
		require.NoError(tt, err)
		assert.Equal(tt, int64(4), n)

		var records []*models.EntryRecord
		require.NoError(tt, service.ReadParquet(dst, func(rec *models.EntryRecord) error {
			records = append(records, rec)
			return nil
		}))
		require.Equal(tt, 4, len(records))
		assert.Equal(tt, "/index.html", records[0].Path)
		assert.Equal(tt, "sess-a", records[0].SessionID)
		assert.Equal(tt, int32(200), records[0].Status)
		assert.True(tt, records[0].IsPage)
		assert.True(tt, records[2].IsRobot)
	})

	t.Run("export page views to S3", func(tt *testing.T) {
		client := mock.NewS3Client()
		svc := service.NewExportService(repo, mock.NewS3ClientFactory(client))

		n, err := svc.Export(ctx, repository.NewPageViewFilter(nil, nil), "s3://analytics/weblog/entries.parquet", "us-east-1")
		require.NoError(tt, err)
		assert.Equal(tt, int64(2), n)

		data, ok := client.Get("analytics", "weblog/entries.parquet")
		require.True(tt, ok)
		assert.Equal(tt, "PAR1", string(data[:4]))
	})
}
