package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/demaxmin/api"
	"github.com/wyfcoding/demaxmin/app"
	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/solver"
)

func main() {
	confPath := flag.String("conf", "./configs/demaxmin/config.toml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		slog.Error("failed to load config", "path", *confPath, "error", err)
		os.Exit(1)
	}
	config.PrintWithMask(cfg)

	application, err := app.NewBuilder[*solver.Service](cfg.Server.Name, cfg).
		WithService(newService).
		WithGin(func(e *gin.Engine, svc *solver.Service) {
			api.RegisterRoutes(e, api.NewHandler(svc))
		}).
		Build()
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}
