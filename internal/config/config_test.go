package config

import (
	"os"
	"path/filepath"
	"testing"
)

// testOptions mirrors the shape of the real CLI options surface.
type testOptions struct {
	Config string

	Host    string `toml:"stream.host" env:"HOST"`
	PubPort int    `toml:"stream.pub_port" env:"PUB_PORT"`
	Play    bool   `toml:"stream.play" env:"PLAY"`
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTempConfig(t, `
[stream]
host = "media.lan"
pub_port = 8554
play = true
`)

	opts := &testOptions{Config: path, Host: "127.0.0.1", PubPort: 9191}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Host != "media.lan" {
		t.Errorf("Host = %q, want %q", opts.Host, "media.lan")
	}
	if opts.PubPort != 8554 {
		t.Errorf("PubPort = %d, want 8554", opts.PubPort)
	}
	if !opts.Play {
		t.Error("Play = false, want true")
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `
[stream]
host = "from-file"
pub_port = 1111
`)

	t.Setenv("STREAMCAST_HOST", "from-env")
	t.Setenv("STREAMCAST_PUB_PORT", "2222")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Host != "from-env" {
		t.Errorf("Host = %q, want env value", opts.Host)
	}
	if opts.PubPort != 2222 {
		t.Errorf("PubPort = %d, want env value 2222", opts.PubPort)
	}
}

func TestLoadConfigMissingFileIsNotAnError(t *testing.T) {
	opts := &testOptions{Config: "/nonexistent/config.toml", Host: "127.0.0.1"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed on missing file: %v", err)
	}
	if opts.Host != "127.0.0.1" {
		t.Errorf("Host = %q, defaults should survive a missing file", opts.Host)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeTempConfig(t, "not [valid toml")
	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err == nil {
		t.Error("LoadConfig should fail on unparsable TOML")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Host", "host"},
		{"PubPort", "pub-port"},
		{"NoLoop", "no-loop"},
		{"LogLevel", "log-level"},
	}
	for _, tt := range tests {
		if got := fieldNameToFlag(tt.in); got != tt.want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeTempConfig(t, `
[logging]
level = "debug"
format = "json"
ffmpeg = "warn"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if cfg.Modules["ffmpeg"] != "warn" {
		t.Errorf("Modules[ffmpeg] = %q, want warn", cfg.Modules["ffmpeg"])
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("/nonexistent/config.toml")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %q/%q, want info/text", cfg.Level, cfg.Format)
	}
}
