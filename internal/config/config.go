package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ManagerManifest is the boot roster for one control-plane daemon: the
// tiles it should know, and which of them it should launch itself.
type ManagerManifest struct {
	Tiles []TileEntry `toml:"tiles"`
}

// TileEntry is one tracked program. Name is optional; when empty the
// manager derives it from the path basename.
type TileEntry struct {
	Name      string `toml:"name"`
	Path      string `toml:"path"`
	Autostart bool   `toml:"autostart"`
}

// TileManifest tunes one worker-side poll loop. Durations ride as
// strings in time.ParseDuration form.
type TileManifest struct {
	Name           string `toml:"name"`
	PollInterval   string `toml:"poll_interval"`
	RequestTimeout string `toml:"request_timeout"`
}

func LoadManagerManifest(path string) (ManagerManifest, error) {
	var cfg ManagerManifest
	if err := loadToml(path, &cfg); err != nil {
		return ManagerManifest{}, err
	}
	if err := ValidateManagerManifest(cfg); err != nil {
		return ManagerManifest{}, err
	}
	return cfg, nil
}

func LoadTileManifest(path string) (TileManifest, error) {
	var cfg TileManifest
	if err := loadToml(path, &cfg); err != nil {
		return TileManifest{}, err
	}
	if err := ValidateTileManifest(cfg); err != nil {
		return TileManifest{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateManagerManifest(cfg ManagerManifest) error {
	seen := map[string]int{}
	for i, entry := range cfg.Tiles {
		if err := ValidateTileEntry(entry); err != nil {
			return fmt.Errorf("tile[%d] invalid: %w", i, err)
		}
		name := EntryName(entry)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("tile[%d] duplicates name %q from tile[%d]", i, name, prev)
		}
		seen[name] = i
	}
	return nil
}

func ValidateTileEntry(cfg TileEntry) error {
	if strings.TrimSpace(cfg.Path) == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

func ValidateTileManifest(cfg TileManifest) error {
	if err := validateDuration("poll_interval", cfg.PollInterval); err != nil {
		return err
	}
	if err := validateDuration("request_timeout", cfg.RequestTimeout); err != nil {
		return err
	}
	return nil
}

func validateDuration(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive: %s", field, raw)
	}
	return nil
}

// EntryName resolves the name a manifest entry registers under: the
// explicit name when set, the path basename minus extension otherwise.
func EntryName(entry TileEntry) string {
	if name := strings.TrimSpace(entry.Name); name != "" {
		return name
	}
	base := filepath.Base(strings.TrimSpace(entry.Path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Duration parses a manifest duration string, falling back when unset.
func Duration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
