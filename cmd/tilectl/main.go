package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/mosaicctl/internal/acts"
	"github.com/danmuck/mosaicctl/internal/observability"
	"github.com/danmuck/mosaicctl/internal/tile"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a tile config file")
	flag.Parse()

	observability.InitLogger("tile")

	port, err := tile.ParsePortArg(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "tilectl: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadServiceConfig(configPath, port)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load tile config")
	}
	if configPath != "" {
		log.Info().Str("path", configPath).Msg("loaded tile config")
	}

	targets := acts.NewTargets()
	if err := targets.Register("self", newBoard()); err != nil {
		log.Fatal().Err(err).Msg("failed to register board target")
	}
	table, err := acts.DefaultTable(targets)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build action table")
	}
	cfg.Table = table

	svc, err := tile.NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tilectl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "tilectl: %v\n", err)
		os.Exit(1)
	}
}
