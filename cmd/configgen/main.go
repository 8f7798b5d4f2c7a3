// Command configgen writes or validates c64bridge TOML config files.
package main

import (
	"flag"
	"log"

	"github.com/retrolab/c64bridge/internal/config"
)

func main() {
	kind := flag.String("kind", "full", "config kind: hardware|emulator|full")
	output := flag.String("output", "c64bridge.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "c64bridge.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if _, err := config.Load(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated config at %s", *input)
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, *output)
}
