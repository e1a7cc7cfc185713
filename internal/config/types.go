package config

// Config is the server configuration.
type Config struct {
	Cool      Endpoint        `mapstructure:"cool"`
	Hot       Endpoint        `mapstructure:"hot"`
	Map       MapConfig       `mapstructure:"map"`
	Wire      WireConfig      `mapstructure:"wire"`
	Dump      DumpConfig      `mapstructure:"dump"`
	Spectator SpectatorConfig `mapstructure:"spectator"`
	Log       LogConfig       `mapstructure:"log"`
}

// Endpoint is where one side connects.
type Endpoint struct {
	Addr string `mapstructure:"addr"`
}

type MapConfig struct {
	Path     string `mapstructure:"path"`
	Encoding string `mapstructure:"encoding"` // htmlindex name
}

type WireConfig struct {
	Encoding string `mapstructure:"encoding"` // htmlindex name
}

// DumpConfig controls the per-side hex dumps of raw traffic.
type DumpConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type SpectatorConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the feed
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}
