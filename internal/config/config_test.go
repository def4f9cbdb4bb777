package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("database path %q", cfg.DatabasePath)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("log level %q", cfg.LogLevel)
	}
}

func TestLoadRejectsEmptyDatabasePath(t *testing.T) {
	configViper := NewViper()
	configViper.Set("database.path", "  ")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected validation error for empty database path")
	}
}

func TestLoadRejectsEmptyHTTPAddress(t *testing.T) {
	configViper := NewViper()
	configViper.Set("http.address", "")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected validation error for empty http address")
	}
}
