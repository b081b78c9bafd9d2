package main

import (
	"context"
	"fmt"

	"github.com/m-mizutani/weblogparser/internal"
	"github.com/m-mizutani/weblogparser/internal/adaptor"
	"github.com/m-mizutani/weblogparser/internal/service"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/m-mizutani/weblogparser/pkg/parser"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
)

type importArguments struct {
	File      string
	Directory string
	Pattern   string
	Format    int
	Reparse   bool
	JSON      bool
}

func importCommand(args *arguments) *cli.Command {
	var importArgs importArguments

	return &cli.Command{
		Name:      "import",
		Usage:     "Import a log file or log files in a directory",
		ArgsUsage: "[FILE]",
		Action: func(c *cli.Context) error {
			if importArgs.File == "" && c.Args().Present() {
				importArgs.File = c.Args().First()
			}
			return importAction(c.Context, *args, importArgs)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "A single log file (local path or s3://bucket/key) to import",
				Destination: &importArgs.File,
			},
			&cli.StringFlag{
				Name:        "directory",
				Aliases:     []string{"d"},
				Usage:       "Directory (local path or s3://bucket/prefix) to search log files",
				Destination: &importArgs.Directory,
			},
			&cli.StringFlag{
				Name:        "pattern",
				Aliases:     []string{"p"},
				Usage:       "Regular expression of file names in the directory",
				Value:       parser.DefaultFilenamePattern,
				Destination: &importArgs.Pattern,
			},
			&cli.IntFlag{
				Name:        "format",
				Usage:       fmt.Sprintf("Log format: %s", models.LogFormatChoices()),
				Value:       int(models.DefaultLogFormat),
				Destination: &importArgs.Format,
			},
			&cli.BoolFlag{
				Name:        "reparse",
				Usage:       "Re-import files that have been already imported",
				Destination: &importArgs.Reparse,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "Print report as JSON",
				Destination: &importArgs.JSON,
			},
		},
	}
}

func importAction(ctx context.Context, args arguments, importArgs importArguments) error {
	format, err := models.NewLogFormat(importArgs.Format)
	if err != nil {
		return err
	}

	target := importArgs.File
	if target == "" {
		target = importArgs.Directory
	}

	req := &service.ImportRequest{
		File:      importArgs.File,
		Directory: importArgs.Directory,
		Pattern:   importArgs.Pattern,
		Format:    format,
		ImportOptions: service.ImportOptions{
			Reparse: importArgs.Reparse,
		},
	}

	config := parser.DefaultConfig()
	source := adaptor.NewSource(target, args.AwsRegion, adaptor.NewS3Client)
	if err := service.ValidateImportRequest(ctx, source, config, req); err != nil {
		return err
	}

	locker, err := args.newLocker()
	if err != nil {
		return err
	}

	repo, err := args.openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	svc := service.NewImportService(repo, source, config)
	if locker != nil {
		svc.SetLocker(locker)
	}

	report, err := svc.Run(ctx, req)
	if err != nil {
		if report != nil {
			printReport(report, importArgs.JSON)
		}
		return err
	}

	for _, f := range report.Files {
		if f.Action == models.ActionFailed {
			internal.HandleError(errors.Errorf("Failed to import %s: %s", f.Path, f.Error))
		}
	}

	if err := printReport(report, importArgs.JSON); err != nil {
		return err
	}

	if report.Failed() {
		return errors.Errorf("%d of %d files failed", report.Count(models.ActionFailed), len(report.Files))
	}
	return nil
}

func printReport(report *models.RunReport, asJSON bool) error {
	if asJSON {
		return printJSON(report)
	}
	for _, f := range report.Files {
		fmt.Printf("%-9s %s (lines: %d, entries: %d, errors: %d)\n",
			f.Action, f.Path, f.Lines, f.Entries, f.Errors)
	}
	return nil
}
