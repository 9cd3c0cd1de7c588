package config

import (
	"flag"
)

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagAddr       = flag.String("addr", "", "Replication server listen address")
	flagTickRate   = flag.Int("tick-rate", 0, "Server ticks per second")
	flagSpawnDelay = flag.String("spawn-delay", "", "Seconds between schematic block updates (negative for a single pass)")
	flagMap        = flag.String("map", "", "Comma-separated maps to load on startup")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) error {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagAddr != "" {
		cfg.Server.Addr = *flagAddr
	}
	if *flagTickRate > 0 {
		cfg.Server.TickRate = *flagTickRate
	}
	if *flagSpawnDelay != "" {
		d, err := parseDelay(*flagSpawnDelay)
		if err != nil {
			return err
		}
		cfg.Editor.SchematicBlockSpawnDelay = d
	}
	if *flagMap != "" {
		cfg.Editor.AutoLoadMaps = splitList(*flagMap)
	}
	return nil
}
