package main

import (
	"flag"
	"log"

	"github.com/danmuck/mosaicctl/internal/config"
)

func main() {
	kind := flag.String("kind", "manager", "config kind: manager|tile")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			switch *kind {
			case "manager":
				path = "cmd/mosaicctl/tiles.toml"
			case "tile":
				path = "cmd/tilectl/config.toml"
			default:
				log.Fatalf("unknown kind: %s", *kind)
			}
		}

		switch *kind {
		case "manager":
			if _, err := config.LoadManagerManifest(path); err != nil {
				log.Fatal(err)
			}
		case "tile":
			if _, err := config.LoadTileManifest(path); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "manager":
			target = "cmd/mosaicctl/tiles.toml"
		case "tile":
			target = "cmd/tilectl/config.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
