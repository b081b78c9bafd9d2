package models

import "github.com/pkg/errors"

// Configuration errors. They are returned before any file I/O begins.
var (
	ErrInvalidFormat     = errors.New("Invalid log format")
	ErrNoImportTarget    = errors.New("Either a file or a directory is required")
	ErrFileNotFound      = errors.New("File does not exist")
	ErrResetConfirmation = errors.New("Reset requires exact confirmation value ALL")
)
