package configs

import (
	"flag"
	"os"

	"github.com/parleychat/parley/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file location from the --config
// flag, the PARLEY_CONFIG env var, or a list of conventional locations.
// An empty result means "defaults only" and is not an error.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("PARLEY_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"../../config.yaml", // keep for local dev
			"/etc/parley/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
