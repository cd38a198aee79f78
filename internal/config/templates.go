package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "manager":
		return managerTemplate, nil
	case "tile":
		return tileTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const managerTemplate = `[[tiles]]
name = "alpha"
path = "/opt/mosaic/tiles/alpha"
autostart = true

[[tiles]]
name = "beta"
path = "/opt/mosaic/tiles/beta"
autostart = false
`

const tileTemplate = `name = "alpha"
poll_interval = "33ms"
request_timeout = "2s"
`
