// Package config loads pesitd's settings from a config file, the
// environment, and CLI flags (in that priority order, viper's usual
// layering).
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/pesit-e/pesitengine/internal/params"
)

// Config is pesitd's full runtime configuration.
type Config struct {
	ListenAddr  string `mapstructure:"listen_addr" validate:"required"`
	ServerID    string `mapstructure:"server_id" validate:"required"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogEncoding string `mapstructure:"log_encoding" validate:"oneof=console json"`

	StorageBackend string `mapstructure:"storage_backend" validate:"oneof=local s3"`
	StorageRoot    string `mapstructure:"storage_root"`
	S3Bucket       string `mapstructure:"s3_bucket"`
	S3KeyPrefix    string `mapstructure:"s3_key_prefix"`

	PartnersFile string `mapstructure:"partners_file"`

	MaxEntitySize  int `mapstructure:"max_entity_size" validate:"gte=6,lte=65535"`
	SyncIntervalKB int `mapstructure:"sync_interval_kb" validate:"gte=0"`

	RestartStoreBackend string `mapstructure:"restart_store_backend" validate:"oneof=memory badger"`
	BadgerPath          string `mapstructure:"badger_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":6969")
	v.SetDefault("server_id", "PESITSRV")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_encoding", "console")
	v.SetDefault("storage_backend", "local")
	v.SetDefault("storage_root", "./data")
	v.SetDefault("max_entity_size", 4096)
	v.SetDefault("sync_interval_kb", 1024)
	v.SetDefault("restart_store_backend", "memory")
	v.SetDefault("badger_path", "./data/restart.db")
}

// Load reads configFile (if non-empty), then environment variables
// prefixed PESITD_, into a validated Config. v may be nil, in which
// case a fresh viper.Viper is used; callers that bind cobra flags pass
// their own instance so flag values take the highest priority.
func Load(configFile string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix("PESITD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(mapstructure.StringToTimeDurationHookFunc())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := params.ValidateStruct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
