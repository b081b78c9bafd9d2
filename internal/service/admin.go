package service

import (
	"context"

	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/m-mizutani/weblogparser/pkg/models"
)

// ResetConfirmation is the exact value required to delete all data.
const ResetConfirmation = "ALL"

// CheckResetConfirmation returns ErrResetConfirmation unless confirm is exactly
// ResetConfirmation.
func CheckResetConfirmation(confirm string) error {
	if confirm != ResetConfirmation {
		return models.ErrResetConfirmation
	}
	return nil
}

// AdminService manages stored import state.
type AdminService struct {
	repo repository.Repository
}

// NewAdminService is constructor of AdminService
func NewAdminService(repo repository.Repository) *AdminService {
	return &AdminService{repo: repo}
}

// Reset deletes all directories, files and entries. Nothing is deleted unless
// confirm is exactly ResetConfirmation.
func (x *AdminService) Reset(ctx context.Context, confirm string) error {
	if err := CheckResetConfirmation(confirm); err != nil {
		return err
	}

	logger.Warn("Resetting all log data")
	if err := x.repo.ResetAll(ctx); err != nil {
		return err
	}
	logger.Info("Done")
	return nil
}

// Files returns import state of all log files.
func (x *AdminService) Files(ctx context.Context) ([]*models.LogFileSummary, error) {
	return x.repo.ListFiles(ctx)
}
