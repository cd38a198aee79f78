package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/mosaicctl/internal/mosaic"
	"github.com/danmuck/mosaicctl/internal/observability"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a mosaic config file")
	flag.Parse()

	observability.InitLogger("mosaic")

	cfg := mosaic.DefaultServiceConfig()
	if configPath != "" {
		loaded, err := loadServiceConfig(configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load mosaic config")
		}
		cfg = loaded
		log.Info().Str("path", configPath).Msg("loaded mosaic config")
	}

	svc := mosaic.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mosaicctl: %v\n", err)
		os.Exit(1)
	}
}
