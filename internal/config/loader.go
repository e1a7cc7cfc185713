package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	EnvPrefix  = "CHASER"
	configName = "chaser"
)

// flag name -> config key
var flagKeys = map[string]string{
	"cool-addr":      "cool.addr",
	"hot-addr":       "hot.addr",
	"map":            "map.path",
	"map-encoding":   "map.encoding",
	"wire-encoding":  "wire.encoding",
	"dump":           "dump.enabled",
	"dump-dir":       "dump.dir",
	"spectator-addr": "spectator.addr",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cool.addr", ":40000")
	v.SetDefault("hot.addr", ":50000")
	v.SetDefault("map.path", "")
	v.SetDefault("map.encoding", "shift_jis")
	v.SetDefault("wire.encoding", "shift_jis")
	v.SetDefault("dump.enabled", false)
	v.SetDefault("dump.dir", "dump")
	v.SetDefault("spectator.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// NewFlagSet declares the command-line flags Load understands.
func NewFlagSet(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.String("config", "", "directory holding "+configName+".yaml")
	f.String("cool-addr", ":40000", "listen address of the Cool side")
	f.String("hot-addr", ":50000", "listen address of the Hot side")
	f.StringP("map", "m", "", "map file to play")
	f.String("map-encoding", "shift_jis", "text encoding of the map file")
	f.String("wire-encoding", "shift_jis", "text encoding of the line protocol")
	f.Bool("dump", false, "hex dump raw traffic per side")
	f.String("dump-dir", "dump", "directory for traffic dumps")
	f.String("spectator-addr", "", "serve the spectator feed on this address")
	f.String("log-level", "info", "log level")
	f.String("log-format", "text", "log format (text or json)")
	return f
}

// Load merges, from lowest to highest precedence, defaults, the optional
// config file, the environment (a .env file is read first) and the flags
// that were set.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if flags != nil {
		if dir, err := flags.GetString("config"); err == nil && dir != "" {
			v.AddConfigPath(dir)
		}
	}
	// default config path
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		log.WithField("file", v.ConfigFileUsed()).Debug("config file loaded")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Map.Path == "" {
		return fmt.Errorf("no map file given")
	}
	if cfg.Cool.Addr == "" || cfg.Hot.Addr == "" {
		return fmt.Errorf("both sides need a listen address")
	}
	if cfg.Cool.Addr == cfg.Hot.Addr {
		return fmt.Errorf("cool and hot share the address %q", cfg.Cool.Addr)
	}
	if _, err := cfg.MapEncoding(); err != nil {
		return err
	}
	wire, err := cfg.WireEncoding()
	if err != nil {
		return err
	}
	if err := checkWireEncoding(cfg.Wire.Encoding, wire); err != nil {
		return err
	}
	if cfg.Dump.Enabled && cfg.Dump.Dir == "" {
		return fmt.Errorf("dumps enabled without a directory")
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("unknown log format '%s'", cfg.Log.Format)
	}
	return nil
}

// MapEncoding resolves the map file encoding.
func (c *Config) MapEncoding() (encoding.Encoding, error) {
	return lookupEncoding(c.Map.Encoding)
}

// WireEncoding resolves the line protocol encoding.
func (c *Config) WireEncoding() (encoding.Encoding, error) {
	return lookupEncoding(c.Wire.Encoding)
}

// DumpDir is the dump directory, or "" when dumps are off.
func (c *Config) DumpDir() string {
	if !c.Dump.Enabled {
		return ""
	}
	return c.Dump.Dir
}

// wireText holds every character the line protocol uses.
const wireText = "@gr#0123wlspudlr\r\n"

// checkWireEncoding rejects encodings that do not keep ASCII one byte per
// character, since the line framing counts bytes.
func checkWireEncoding(name string, enc encoding.Encoding) error {
	b, err := enc.NewEncoder().Bytes([]byte(wireText))
	if err == nil && string(b) == wireText {
		var back []byte
		back, err = enc.NewDecoder().Bytes(b)
		if err == nil && string(back) == wireText {
			return nil
		}
	}
	return fmt.Errorf("wire encoding '%s' is not single-byte ASCII compatible", name)
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding '%s': %w", name, err)
	}
	return enc, nil
}
