// Package config builds the server's runtime configuration by layering
// command-line flags over CORVUSDB_-prefixed environment variables over an
// optional YAML file over the built-in defaults, using
// github.com/spf13/viper for the layering and github.com/spf13/cobra for
// flag binding -- the CLI/config split already used elsewhere in this
// dependency pack.
package config

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// WalConfig configures the write-ahead log's on-disk location and
// durability policy, named directly in SPEC_FULL.md §6.
type WalConfig struct {
	DirPath              string        `mapstructure:"wal_dir"`
	SyncPolicy           string        `mapstructure:"wal_sync_policy"`
	SyncIntervalMillis   int           `mapstructure:"wal_sync_interval_ms"`
	SyncBatchBytes       int64         `mapstructure:"wal_sync_batch_bytes"`
	Format               string        `mapstructure:"wal_format"`
	CheckpointDir        string        `mapstructure:"checkpoint_dir"`
	CheckpointKeep       int           `mapstructure:"checkpoint_keep"`
	MaxReplayErrors      int           `mapstructure:"max_replay_errors"`
}

// ServerConfig configures the wire server, named directly in
// SPEC_FULL.md §6.
type ServerConfig struct {
	BindAddress     string        `mapstructure:"bind_address"`
	MaxConnections  int           `mapstructure:"max_connections"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxRequestSize  int           `mapstructure:"max_request_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MetricsAddress  string        `mapstructure:"metrics_address"`
	LogLevel        string        `mapstructure:"log_level"`
	LogJSON         bool          `mapstructure:"log_json"`
}

// Config is the top-level configuration object loaded by Load.
type Config struct {
	Server ServerConfig
	Wal    WalConfig
}

// defaults seeds viper with the built-in defaults so an empty
// environment and no config file still produce a runnable configuration.
func defaults(v *viper.Viper) {
	v.SetDefault("bind_address", "127.0.0.1:7878")
	v.SetDefault("max_connections", 1000)
	v.SetDefault("idle_timeout", 300*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("max_request_size", 16*1024*1024)
	v.SetDefault("cleanup_interval", 60*time.Second)
	v.SetDefault("metrics_address", "127.0.0.1:9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("wal_dir", "./data/wal")
	v.SetDefault("wal_sync_policy", "interval")
	v.SetDefault("wal_sync_interval_ms", 200)
	v.SetDefault("wal_sync_batch_bytes", 1*1024*1024)
	v.SetDefault("wal_format", "binary")
	v.SetDefault("checkpoint_dir", "./data/checkpoints")
	v.SetDefault("checkpoint_keep", 3)
	v.SetDefault("max_replay_errors", 10)
}

// BindFlags registers every configuration key as a flag on cmd, so cobra's
// flag parsing composes with viper's layering (flags outrank environment
// variables and the config file).
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()

	flags.String("bind-address", "", "TCP address the wire server listens on")
	flags.Int("max-connections", 0, "maximum concurrent client connections")
	flags.Duration("idle-timeout", 0, "close connections idle longer than this")
	flags.Duration("request-timeout", 0, "per-request read/processing deadline")
	flags.Int("max-request-size", 0, "reject frames larger than this many bytes")
	flags.Duration("cleanup-interval", 0, "how often the connection reaper scans for idle connections")
	flags.String("metrics-address", "", "HTTP address serving /metrics, empty disables it")
	flags.String("log-level", "", "debug|info|warn|error")
	flags.Bool("log-json", false, "emit logs as JSON instead of console format")

	flags.String("wal-dir", "", "directory holding the write-ahead log segment")
	flags.String("wal-sync-policy", "", "every-write|interval|batch")
	flags.Int("wal-sync-interval-ms", 0, "fsync cadence in milliseconds for the interval policy")
	flags.Int64("wal-sync-batch-bytes", 0, "unsynced byte threshold for the batch policy")
	flags.String("wal-format", "", "binary|text")
	flags.String("checkpoint-dir", "", "directory holding snapshot_<id>.json checkpoint files")
	flags.Int("checkpoint-keep", 0, "number of recent checkpoints to retain; this value is not read, the store always keeps the 3 most recent")
	flags.Int("max-replay-errors", 0, "tolerate this many corrupt WAL entries during recovery")

	for _, name := range []string{
		"bind-address", "max-connections", "idle-timeout", "request-timeout",
		"max-request-size", "cleanup-interval", "metrics-address", "log-level", "log-json",
		"wal-dir", "wal-sync-policy", "wal-sync-interval-ms", "wal-sync-batch-bytes",
		"wal-format", "checkpoint-dir", "checkpoint-keep", "max-replay-errors",
	} {
		key := flagToKey(name)
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

func flagToKey(flagName string) string {
	out := make([]byte, 0, len(flagName))
	for _, r := range flagName {
		if r == '-' {
			out = append(out, '_')
			continue
		}
		out = append(out, byte(r))
	}
	return string(out)
}

// Load builds a Config by layering, highest precedence first: flags bound
// via BindFlags, CORVUSDB_-prefixed environment variables, an optional
// YAML file at configFile (ignored if empty or missing), and the defaults
// above.
func Load(v *viper.Viper, configFile string) (Config, error) {
	defaults(v)

	v.SetEnvPrefix("corvusdb")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	}

	cfg := Config{
		Server: ServerConfig{
			BindAddress:     v.GetString("bind_address"),
			MaxConnections:  v.GetInt("max_connections"),
			IdleTimeout:     v.GetDuration("idle_timeout"),
			RequestTimeout:  v.GetDuration("request_timeout"),
			MaxRequestSize:  v.GetInt("max_request_size"),
			CleanupInterval: v.GetDuration("cleanup_interval"),
			MetricsAddress:  v.GetString("metrics_address"),
			LogLevel:        v.GetString("log_level"),
			LogJSON:         v.GetBool("log_json"),
		},
		Wal: WalConfig{
			DirPath:         v.GetString("wal_dir"),
			SyncPolicy:      v.GetString("wal_sync_policy"),
			SyncIntervalMillis: v.GetInt("wal_sync_interval_ms"),
			SyncBatchBytes:  v.GetInt64("wal_sync_batch_bytes"),
			Format:          v.GetString("wal_format"),
			CheckpointDir:   v.GetString("checkpoint_dir"),
			CheckpointKeep:  v.GetInt("checkpoint_keep"),
			MaxReplayErrors: v.GetInt("max_replay_errors"),
		},
	}
	return cfg, nil
}
