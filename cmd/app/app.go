package main

import (
	"os"

	"github.com/DRSN-tech/outfit-recsys/internal/app"
	config "github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
)

//	@title			Outfit recommendation API
//	@version		1.0
//	@description	Похожие вещи, поиск по описанию, популярное и персональные рекомендации.
//	@BasePath		/api/v1
func main() {
	log := logger.NewLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		os.Exit(1)
	}
}
