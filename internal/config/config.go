// Package config loads corecfg.Config from a YAML file, environment
// variables, and CLI flags, merged by viper with the CLI taking highest
// precedence. Grounded on kgiusti-go-fdo-server/cmd/config.go's
// mapstructure-decode-after-viper-merge pattern and that repo's
// cmd/root.go / cmd/serve_config_test.go viper.BindPFlags wiring. The YAML
// file itself is decoded directly with yaml.v3, the way the rest of the
// nfctools family (sdmconfig, minter, reset internal/config packages)
// reads config.yaml, rather than relying on viper's own YAML support.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// Load merges defaults, an optional YAML file at path (ignored if empty or
// missing), ACCESSD_-prefixed environment variables, and any bound flags,
// then decodes the result into a corecfg.Config.
func Load(path string, flags *pflag.FlagSet) (corecfg.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("accessd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := corecfg.DefaultConfig()
	for _, key := range []string{
		"confirmation_timeout", "hold_duration", "cache_capacity", "cache_ttl",
		"command_timeout", "log_format", "log_level", "reader_index",
		"cloud_endpoint", "secrets_path",
	} {
		v.SetDefault(key, defaultValue(def, key))
	}

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return corecfg.Config{}, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else {
			var fileValues map[string]interface{}
			if err := yaml.Unmarshal(content, &fileValues); err != nil {
				return corecfg.Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
			if err := v.MergeConfigMap(fileValues); err != nil {
				return corecfg.Config{}, fmt.Errorf("config: merging %s: %w", path, err)
			}
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return corecfg.Config{}, fmt.Errorf("config: binding flags: %w", err)
		}
	}

	var cfg corecfg.Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return corecfg.Config{}, fmt.Errorf("config: building decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return corecfg.Config{}, fmt.Errorf("config: decoding: %w", err)
	}

	if err := validate(cfg); err != nil {
		return corecfg.Config{}, err
	}
	return cfg, nil
}

func validate(cfg corecfg.Config) error {
	if cfg.CacheCapacity <= 0 {
		return fmt.Errorf("config: cache_capacity must be positive, got %d", cfg.CacheCapacity)
	}
	if cfg.ConfirmationTimeout <= 0 {
		return fmt.Errorf("config: confirmation_timeout must be positive")
	}
	if cfg.HoldDuration <= 0 {
		return fmt.Errorf("config: hold_duration must be positive")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}

func defaultValue(def corecfg.Config, key string) interface{} {
	switch key {
	case "confirmation_timeout":
		return def.ConfirmationTimeout
	case "hold_duration":
		return def.HoldDuration
	case "cache_capacity":
		return def.CacheCapacity
	case "cache_ttl":
		return def.CacheTTL
	case "command_timeout":
		return def.CommandTimeout
	case "log_format":
		return def.LogFormat
	case "log_level":
		return def.LogLevel
	case "reader_index":
		return def.ReaderIndex
	case "cloud_endpoint":
		return def.CloudEndpoint
	case "secrets_path":
		return def.SecretsPath
	default:
		return nil
	}
}
