package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/mosaicctl/internal/mosaic"
)

type fileConfig struct {
	ID              string `toml:"id"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Heartbeat       string `toml:"heartbeat"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	ManifestPath    string `toml:"manifest_path"`
}

func loadServiceConfig(path string) (mosaic.ServiceConfig, error) {
	cfg := mosaic.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return mosaic.ServiceConfig{}, fmt.Errorf("load mosaic config: %w", err)
	}

	if meta.IsDefined("id") {
		id := strings.TrimSpace(raw.ID)
		if id != "" {
			cfg.ID = id
		}
	}

	if meta.IsDefined("host") {
		host := strings.TrimSpace(raw.Host)
		if host != "" {
			cfg.Host = host
		}
	}

	if meta.IsDefined("port") {
		if raw.Port < 0 || raw.Port > 65535 {
			return mosaic.ServiceConfig{}, fmt.Errorf("port %d out of range", raw.Port)
		}
		cfg.Port = raw.Port
	}

	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return mosaic.ServiceConfig{}, fmt.Errorf("parse heartbeat: %w", err)
		}
		cfg.Heartbeat = d
	}

	if meta.IsDefined("shutdown_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ShutdownTimeout))
		if err != nil {
			return mosaic.ServiceConfig{}, fmt.Errorf("parse shutdown_timeout: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	if meta.IsDefined("manifest_path") {
		cfg.ManifestPath = strings.TrimSpace(raw.ManifestPath)
	}

	return cfg, nil
}
