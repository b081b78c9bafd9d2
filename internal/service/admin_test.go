package service_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/weblogparser/internal/mock"
	"github.com/m-mizutani/weblogparser/internal/service"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminReset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeLog(t, dir, "access.log", testLines)

	repo := mock.NewRepository()
	_, err := newImportService(repo).ImportFile(ctx, path, models.LogFormatWithSession, service.ImportOptions{})
	require.NoError(t, err)

	svc := service.NewAdminService(repo)

	for _, confirm := range []string{"", "all", "yes", "ALL "} {
		assert.Equal(t, models.ErrResetConfirmation, svc.Reset(ctx, confirm), confirm)
	}
	files, err := svc.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, len(files))

	require.NoError(t, svc.Reset(ctx, "ALL"))
	files, err = svc.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, len(files))
	n, err := repo.CountEntries(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
