package main

import (
	"github.com/m-mizutani/weblogparser/internal/service"
	cli "github.com/urfave/cli/v2"
)

func timeRangeFlags(r *timeRange) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "start",
			Aliases:     []string{"s"},
			Usage:       "Start time (inclusive), RFC3339 or YYYY-MM-DD",
			Destination: &r.Start,
		},
		&cli.StringFlag{
			Name:        "end",
			Aliases:     []string{"e"},
			Usage:       "End time (exclusive), RFC3339 or YYYY-MM-DD",
			Destination: &r.End,
		},
	}
}

func statsCommand(args *arguments) *cli.Command {
	var r timeRange

	return &cli.Command{
		Name:  "stats",
		Usage: "Show page impressions and sessions",
		Action: func(c *cli.Context) error {
			start, end, err := r.parse()
			if err != nil {
				return err
			}

			repo, err := args.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			stats, err := service.NewAnalyticsService(repo).Stats(c.Context, start, end)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
		Flags: timeRangeFlags(&r),
	}
}
