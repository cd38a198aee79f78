package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/mosaicctl/internal/config"
	"github.com/danmuck/mosaicctl/internal/tile"
)

// loadServiceConfig builds the worker config from the launch port plus
// an optional manifest. Without a manifest the worker keeps its derived
// name and the default poll cadence.
func loadServiceConfig(path string, port int) (tile.ServiceConfig, error) {
	cfg := tile.ServiceConfig{
		Name:         defaultWorkerName(),
		Port:         port,
		PollInterval: tile.DefaultPollInterval,
	}
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	manifest, err := config.LoadTileManifest(path)
	if err != nil {
		return tile.ServiceConfig{}, err
	}
	if name := strings.TrimSpace(manifest.Name); name != "" {
		cfg.Name = name
	}
	interval, err := config.Duration(manifest.PollInterval, tile.DefaultPollInterval)
	if err != nil {
		return tile.ServiceConfig{}, fmt.Errorf("parse poll_interval: %w", err)
	}
	cfg.PollInterval = interval
	timeout, err := config.Duration(manifest.RequestTimeout, 0)
	if err != nil {
		return tile.ServiceConfig{}, fmt.Errorf("parse request_timeout: %w", err)
	}
	cfg.RequestTimeout = timeout
	return cfg, nil
}

// defaultWorkerName matches the name the manager derives from the
// program path it launched.
func defaultWorkerName() string {
	base := filepath.Base(os.Args[0])
	return strings.TrimSuffix(base, filepath.Ext(base))
}
