package commands

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"trackscrape/internal/components/telemetry"
	"trackscrape/lib/configutil"
)

type Config struct {
	// Definitions is the directory holding the site definitions.
	Definitions string `json:"definitions"`
	// Sessions is the sqlite database the login cookies are kept in.
	Sessions        string `json:"sessions"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
	// Timezone is the IANA zone dates without an explicit offset are read in.
	Timezone string `json:"timezone"`
	// DumpDir receives raw pages and http exchanges referenced by the logs.
	DumpDir   string           `json:"dump_dir"`
	Debug     bool             `json:"debug"`
	Telemetry telemetry.Config `json:"telemetry"`
	// Indexers holds the setting values of every site, keyed by definition id.
	Indexers map[string]map[string]string `json:"indexers"`
}

func (c Config) cacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func readConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("config file not found, using defaults", "path", path)
		err = nil
	}
	if err != nil {
		return Config{}, err
	}

	if cfg.Definitions == "" {
		cfg.Definitions = "definitions"
	}
	if cfg.Sessions == "" {
		cfg.Sessions = ".dev/sessions.db"
	}
	if cfg.CacheTTLSeconds == 0 {
		cfg.CacheTTLSeconds = 300
	}
	return cfg, nil
}
