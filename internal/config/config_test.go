package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheCapacity != 8 {
		t.Fatalf("cache_capacity = %d, want 8", cfg.CacheCapacity)
	}
	if cfg.ConfirmationTimeout != 15*time.Second {
		t.Fatalf("confirmation_timeout = %v, want 15s", cfg.ConfirmationTimeout)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("log_format = %q, want text", cfg.LogFormat)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := writeConfig(t, `
cache_capacity: 16
cache_ttl: 1h
log_format: json
cloud_endpoint: https://cloud.example/checkin
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheCapacity != 16 {
		t.Fatalf("cache_capacity = %d, want 16", cfg.CacheCapacity)
	}
	if cfg.CacheTTL != time.Hour {
		t.Fatalf("cache_ttl = %v, want 1h", cfg.CacheTTL)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("log_format = %q, want json", cfg.LogFormat)
	}
	if cfg.CloudEndpoint != "https://cloud.example/checkin" {
		t.Fatalf("cloud_endpoint = %q", cfg.CloudEndpoint)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "log_format: json\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log_format", "text", "")
	if err := flags.Set("log_format", "text"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Parse([]string{"--log_format=text"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("log_format = %q, want text (flag overrides file)", cfg.LogFormat)
	}
}

func TestInvalidLogFormatRejected(t *testing.T) {
	path := writeConfig(t, "log_format: xml\n")
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for invalid log_format")
	}
}

func TestNonPositiveCacheCapacityRejected(t *testing.T) {
	path := writeConfig(t, "cache_capacity: 0\n")
	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected error for zero cache_capacity")
	}
}
