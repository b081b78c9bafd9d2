package main

import (
	"github.com/m-mizutani/weblogparser/internal/adaptor"
	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/m-mizutani/weblogparser/internal/service"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
)

type exportArguments struct {
	Output    string
	PageViews bool
	timeRange
}

func exportCommand(args *arguments) *cli.Command {
	var exportArgs exportArguments

	return &cli.Command{
		Name:  "export",
		Usage: "Export log entries to a parquet file",
		Action: func(c *cli.Context) error {
			filter := &repository.EntryFilter{}
			if exportArgs.Start != "" || exportArgs.End != "" {
				start, end, err := exportArgs.parse()
				if err != nil {
					return err
				}
				filter.Start, filter.End = &start, &end
			}
			if exportArgs.PageViews {
				filter = repository.NewPageViewFilter(filter.Start, filter.End)
			}

			repo, err := args.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			svc := service.NewExportService(repo, adaptor.NewS3Client)
			n, err := svc.Export(c.Context, filter, exportArgs.Output, args.AwsRegion)
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"output":  exportArgs.Output,
				"entries": n,
			}).Info("Exported")
			return nil
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "Output parquet file path or s3://bucket/key",
				Required:    true,
				Destination: &exportArgs.Output,
			},
			&cli.BoolFlag{
				Name:        "page-views",
				Usage:       "Export only successful page views by human",
				Destination: &exportArgs.PageViews,
			},
		}, timeRangeFlags(&exportArgs.timeRange)...),
	}
}
