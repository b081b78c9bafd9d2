package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/weblogparser/internal/service"
	"github.com/m-mizutani/weblogparser/pkg/models"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
)

func dumpCommand(args *arguments) *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Print rows of exported parquet files as JSON lines",
		ArgsUsage: "FILE [FILE...]",
		Action: func(c *cli.Context) error {
			if !c.Args().Present() {
				return errors.New("At least one parquet file is required")
			}

			for _, path := range c.Args().Slice() {
				if err := service.ReadParquet(path, printRecord); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printRecord(rec *models.EntryRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "Failed to marshal record")
	}
	fmt.Println(string(raw))
	return nil
}
