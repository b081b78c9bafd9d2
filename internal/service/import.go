package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/weblogparser/internal"
	"github.com/m-mizutani/weblogparser/internal/adaptor"
	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/m-mizutani/weblogparser/pkg/parser"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MaxLineSize is the longest line that can be read from a log file.
const MaxLineSize = 1024 * 1024

// ImportOptions changes behavior of import.
type ImportOptions struct {
	// Reparse discards entries of already imported file and imports it again.
	Reparse bool
}

// ImportRequest is target of an import run. File has priority over Directory.
type ImportRequest struct {
	File      string
	Directory string
	Pattern   string
	Format    models.LogFormat
	ImportOptions
}

// ImportService imports access log files into Repository.
type ImportService struct {
	repo   repository.Repository
	source adaptor.Source
	config *parser.Config
	locker repository.Locker
}

// NewImportService is constructor of ImportService. Default parser.Config is
// used if config is nil.
func NewImportService(repo repository.Repository, source adaptor.Source, config *parser.Config) *ImportService {
	if config == nil {
		config = parser.DefaultConfig()
	}
	return &ImportService{
		repo:   repo,
		source: source,
		config: config,
	}
}

// SetLocker enables mutual exclusion of each file import among processes.
func (x *ImportService) SetLocker(locker repository.Locker) {
	x.locker = locker
}

// ValidateImportRequest checks format, target and filename pattern of req
// without touching any repository.
func ValidateImportRequest(ctx context.Context, source adaptor.Source, config *parser.Config, req *ImportRequest) error {
	if config == nil {
		config = parser.DefaultConfig()
	}
	if _, err := config.Format(req.Format); err != nil {
		return err
	}

	if req.File == "" {
		if req.Directory == "" {
			return models.ErrNoImportTarget
		}
		_, err := config.CompileFilenamePattern(req.Pattern)
		return err
	}

	exists, err := source.Exists(ctx, req.File)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrap(models.ErrFileNotFound, req.File)
	}
	return nil
}

// Run validates request and imports a file or all matched files in a directory.
// Configuration errors are returned before any file is read.
func (x *ImportService) Run(ctx context.Context, req *ImportRequest) (*models.RunReport, error) {
	if err := ValidateImportRequest(ctx, x.source, x.config, req); err != nil {
		return nil, err
	}

	if req.File == "" {
		return x.ImportDirectory(ctx, req.Directory, req.Pattern, req.Format, req.ImportOptions)
	}

	report := &models.RunReport{StartedAt: time.Now().UTC()}
	fileReport, err := x.ImportFile(ctx, req.File, req.Format, req.ImportOptions)
	if err != nil {
		logger.WithError(err).WithField("path", req.File).Error("Failed to import file")
	}
	report.Files = append(report.Files, fileReport)
	report.FinishedAt = time.Now().UTC()

	return report, nil
}

// ImportDirectory imports files in base directory whose name matches pattern.
// A failure of one file does not stop others and is recorded in the report.
// If ctx is canceled, reports of files processed so far are returned with error.
func (x *ImportService) ImportDirectory(ctx context.Context, base, pattern string, format models.LogFormat, opt ImportOptions) (*models.RunReport, error) {
	if _, err := x.config.Format(format); err != nil {
		return nil, err
	}

	re, err := x.config.CompileFilenamePattern(pattern)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"base":    base,
		"pattern": re.String(),
		"format":  format.String(),
	}).Info("Searching log files")

	files, err := x.source.ListFiles(ctx, base, re)
	if err != nil {
		return nil, err
	}

	report := &models.RunReport{StartedAt: time.Now().UTC()}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now().UTC()
			return report, errors.Wrap(err, "Import is canceled")
		}

		fileReport, err := x.ImportFile(ctx, path, format, opt)
		if err != nil {
			logger.WithError(err).WithField("path", path).Error("Failed to import file")
		}
		report.Files = append(report.Files, fileReport)
	}
	report.FinishedAt = time.Now().UTC()

	logger.WithFields(logrus.Fields{
		"files":    len(report.Files),
		"imported": report.Count(models.ActionImported),
		"resumed":  report.Count(models.ActionResumed),
		"reparsed": report.Count(models.ActionReparsed),
		"skipped":  report.Count(models.ActionSkipped),
		"failed":   report.Count(models.ActionFailed),
	}).Info("Completed importing directory")

	return report, nil
}

func lockKey(dir, name string, format models.LogFormat) string {
	return fmt.Sprintf("%s/%s:%d", dir, name, int(format))
}

// ImportFile imports one log file. Entries of the file are committed together
// with its completed state, or not at all. The returned report is never nil;
// its Action is failed when error is returned.
func (x *ImportService) ImportFile(ctx context.Context, path string, format models.LogFormat, opt ImportOptions) (*models.FileReport, error) {
	report := &models.FileReport{Path: path, Format: format}

	fail := func(err error) (*models.FileReport, error) {
		report.Action = models.ActionFailed
		report.Error = err.Error()
		return report, err
	}

	builder, err := x.config.NewBuilder(format)
	if err != nil {
		return fail(err)
	}

	resolved, dir, name, err := x.source.Resolve(path)
	if err != nil {
		return fail(err)
	}
	report.Path = resolved

	if x.locker != nil {
		release, err := x.locker.Lock(ctx, lockKey(dir, name, format))
		if err != nil {
			return fail(err)
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				internal.HandleError(err)
			}
		}()
	}

	log := logger.WithFields(logrus.Fields{
		"path":   resolved,
		"format": format.String(),
	})

	logPath, created, err := x.repo.GetOrCreatePath(ctx, dir)
	if err != nil {
		return fail(err)
	}
	report.PathCreated = created
	if created {
		log.WithField("dir", dir).Debug("Created log path")
	} else {
		log.WithField("dir", dir).Debug("Fetched log path")
	}

	file, created, err := x.repo.GetOrCreateFile(ctx, logPath.ID, name, format)
	if err != nil {
		return fail(err)
	}

	report.Action = models.ActionImported
	if !created {
		if !file.Completed() {
			n, err := x.repo.DeleteEntries(ctx, file)
			if err != nil {
				return fail(err)
			}
			report.Purged += n
			report.Action = models.ActionResumed
			log.WithField("deleted", n).Info("Deleted entries of incomplete import")
		}

		if opt.Reparse {
			if file.Completed() {
				n, err := x.repo.DeleteEntries(ctx, file)
				if err != nil {
					return fail(err)
				}
				report.Purged += n
				log.WithField("deleted", n).Info("Deleted entries for reparse")
			}

			file.Reset()
			if err := x.repo.SaveFile(ctx, file); err != nil {
				return fail(err)
			}
			report.Action = models.ActionReparsed
		} else if file.Completed() {
			report.Action = models.ActionSkipped
			report.Errors = file.Errors
			log.Info("Skip already imported file")
			return report, nil
		}
	}

	file.Status = models.ImportInProgress
	file.Errors = 0
	file.ParsedAt = nil
	if err := x.repo.SaveFile(ctx, file); err != nil {
		return fail(err)
	}

	body, err := x.source.Open(ctx, resolved)
	if err != nil {
		return fail(err)
	}
	defer body.Close()

	if err := x.importEntries(ctx, body, builder, file, report, log); err != nil {
		return fail(err)
	}

	return report, nil
}

func (x *ImportService) importEntries(ctx context.Context, body io.Reader, builder *parser.Builder, file *models.LogFile, report *models.FileReport, log *logrus.Entry) error {
	profile := internal.NewProfile()

	batch, err := x.repo.Begin(ctx, file)
	if err != nil {
		return err
	}
	defer func() {
		if err := batch.Rollback(); err != nil {
			log.WithError(err).Warn("Failed to rollback")
		}
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "Import is canceled")
		}

		report.Lines++
		line := strings.TrimRight(scanner.Text(), "\r")

		profile.Start("parse")
		entry, err := builder.ParseLine(line)
		profile.Stop("parse")

		if err != nil {
			report.Errors++
			log.WithError(err).WithField("line", report.Lines).Trace("Skip line")
		} else {
			entry.ID = uuid.New().String()
			entry.FileID = file.ID

			profile.Start("store")
			err := batch.Append(entry)
			profile.Stop("store")
			if err != nil {
				return err
			}
			report.Entries++
		}

		if x.config.ProgressLines > 0 && report.Lines%x.config.ProgressLines == 0 {
			log.WithFields(logrus.Fields{
				"lines":  report.Lines,
				"errors": report.Errors,
			}).Info("Processing")
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "Failed to read log file at line %d", report.Lines+1)
	}

	now := time.Now().UTC()
	file.Status = models.ImportCompleted
	file.Errors = report.Errors
	file.ParsedAt = &now

	profile.Start("commit")
	err = batch.Commit(file)
	profile.Stop("commit")
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"lines":   report.Lines,
		"entries": report.Entries,
		"errors":  report.Errors,
		"profile": profile.Pack(),
	}).Info("Committed log file")

	return nil
}
