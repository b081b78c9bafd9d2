package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/weblogparser/internal"
	"github.com/m-mizutani/weblogparser/pkg/api"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
)

type serveArguments struct {
	Addr string
	Port int
}

func serveCommand(args *arguments) *cli.Command {
	var params serveArguments

	return &cli.Command{
		Name:  "serve",
		Usage: "Run read-only analytics API server",
		Action: func(c *cli.Context) error {
			internal.SetJSONLogFormat()
			gin.SetMode(gin.ReleaseMode)

			repo, err := args.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			logger.WithFields(logrus.Fields{
				"db":     args.DBPath,
				"params": params,
			}).Info("Start API server")

			engine := api.NewEngine(api.NewHandler(repo))
			bindAddr := fmt.Sprintf("%s:%d", params.Addr, params.Port)
			return engine.Run(bindAddr)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Aliases:     []string{"a"},
				Value:       "127.0.0.1",
				Usage:       "Bind address",
				Destination: &params.Addr,
			},
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Value:       10080,
				Usage:       "Bind port number",
				Destination: &params.Port,
			},
		},
	}
}
