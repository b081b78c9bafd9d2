package main

import (
	"github.com/m-mizutani/weblogparser/internal/service"
	cli "github.com/urfave/cli/v2"
)

func resetCommand(args *arguments) *cli.Command {
	var confirm string

	return &cli.Command{
		Name:  "reset",
		Usage: "Delete ALL of the log data in the database",
		Action: func(c *cli.Context) error {
			if err := service.CheckResetConfirmation(confirm); err != nil {
				return err
			}

			repo, err := args.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			return service.NewAdminService(repo).Reset(c.Context, confirm)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "confirm",
				Usage:       "Must be exactly " + service.ResetConfirmation + " to perform reset",
				Destination: &confirm,
			},
		},
	}
}
