package main

import (
	"fmt"
	"time"

	"github.com/m-mizutani/weblogparser/internal/service"
	cli "github.com/urfave/cli/v2"
)

func statusCommand(args *arguments) *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "status",
		Usage: "Show import state of log files",
		Action: func(c *cli.Context) error {
			repo, err := args.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			files, err := service.NewAdminService(repo).Files(c.Context)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(files)
			}

			for _, f := range files {
				fmt.Printf("%s/%s [%s] %s created:%s modified:%s entries:%d errors:%d\n",
					f.Directory, f.Filename, f.Format, f.Status,
					f.CreatedAt.Format(time.RFC3339), f.UpdatedAt.Format(time.RFC3339),
					f.Entries, f.Errors)
			}
			return nil
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "Print as JSON",
				Destination: &asJSON,
			},
		},
	}
}
