package main

import (
	"context"
	"os"

	_ "github.com/jimmicro/version"
	"github.com/jimyag/jvsan/internal/jvsan"
	"github.com/jimyag/jvsan/internal/jvsan/config"
	"github.com/rs/zerolog/log"
)

func main() {
	// JVSAN_CONFIG 为空时只使用默认值和环境变量
	cfg, err := config.Load(os.Getenv("JVSAN_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	server, err := jvsan.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}
	if err := server.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run server")
	}
}
