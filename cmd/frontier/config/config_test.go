package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HatiCode/frontier/pkg/readiness"
)

func mustParse(t *testing.T, args ...string) *Config {
	t.Helper()
	cfg, err := Parse(args)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("FRONTIER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg := mustParse(t)

	if cfg.Listen != ":8083" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":8083")
	}
	if cfg.Storage != "redis" {
		t.Errorf("Storage = %q, want redis", cfg.Storage)
	}
	if cfg.Margin != 2 {
		t.Errorf("Margin = %d, want 2", cfg.Margin)
	}
	if cfg.Interval != 20*time.Second {
		t.Errorf("Interval = %v, want 20s", cfg.Interval)
	}
	if cfg.QueryTimeout != 5*time.Second {
		t.Errorf("QueryTimeout = %v, want 5s", cfg.QueryTimeout)
	}
	if cfg.MaxBackoff != 0 {
		t.Errorf("MaxBackoff = %v, want 0", cfg.MaxBackoff)
	}
	if cfg.Output != "stdout" {
		t.Errorf("Output = %q, want stdout", cfg.Output)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}

	want := []readiness.Series{
		{Name: "map", Key: "smithers:map_timestamps"},
		{Name: "share", Key: "smithers:share_timestamps"},
	}
	if len(cfg.Series) != len(want) {
		t.Fatalf("Series = %v, want %v", cfg.Series, want)
	}
	for i := range want {
		if cfg.Series[i] != want[i] {
			t.Errorf("Series[%d] = %v, want %v", i, cfg.Series[i], want[i])
		}
	}
}

func TestConfig_CustomValues(t *testing.T) {
	t.Setenv("FRONTIER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg := mustParse(t,
		"-listen=:9090",
		"-storage=memory",
		"-series=a=k:a,b=k:b,c=k:c",
		"-margin=3",
		"-interval=1m",
		"-max-backoff=5m",
		"-output=none",
		"-log-format=json",
		"-log-level=debug",
	)

	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":9090")
	}
	if cfg.Storage != "memory" {
		t.Errorf("Storage = %q, want memory", cfg.Storage)
	}
	if len(cfg.Series) != 3 || cfg.Series[2].Key != "k:c" {
		t.Errorf("Series = %v, want three series", cfg.Series)
	}
	if cfg.Margin != 3 {
		t.Errorf("Margin = %d, want 3", cfg.Margin)
	}
	if cfg.Interval != time.Minute {
		t.Errorf("Interval = %v, want 1m", cfg.Interval)
	}
	if cfg.MaxBackoff != 5*time.Minute {
		t.Errorf("MaxBackoff = %v, want 5m", cfg.MaxBackoff)
	}
	if cfg.Output != "none" {
		t.Errorf("Output = %q, want none", cfg.Output)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Setenv("FRONTIER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	tests := []struct {
		name       string
		args       []string
		wantConfig bool
	}{
		{"unknown flag", []string{"-nope"}, false},
		{"bad duration", []string{"-interval=soon"}, false},
		{"empty series", []string{"-series= , "}, true},
		{"duplicate series", []string{"-series=a=k,a=j"}, true},
		{"negative margin", []string{"-margin=-1"}, true},
		{"unknown storage", []string{"-storage=etcd"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.args)
			if err == nil {
				t.Fatalf("Parse() = %+v, want error", cfg)
			}
			if tt.wantConfig && !errors.Is(err, readiness.ErrConfiguration) {
				t.Errorf("Parse() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "frontier.env")
	if err := os.WriteFile(envFile, []byte("MARGIN=4\nSTORAGE=sqlite\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("FRONTIER_ENV_FILE", envFile)
	t.Cleanup(func() {
		os.Unsetenv("MARGIN")
		os.Unsetenv("STORAGE")
	})
	cfg := mustParse(t)

	if cfg.Margin != 4 {
		t.Errorf("Margin = %d, want 4 from env file", cfg.Margin)
	}
	if cfg.Storage != "sqlite" {
		t.Errorf("Storage = %q, want sqlite from env file", cfg.Storage)
	}
}

func TestParseSeries(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []readiness.Series
		wantErr bool
	}{
		{
			name: "pairs",
			spec: "map=k:map, share=k:share",
			want: []readiness.Series{{Name: "map", Key: "k:map"}, {Name: "share", Key: "k:share"}},
		},
		{
			name: "bare key",
			spec: "map_timestamps",
			want: []readiness.Series{{Name: "map_timestamps", Key: "map_timestamps"}},
		},
		{
			name: "empty",
			spec: " , ",
			want: nil,
		},
		{
			name:    "missing key",
			spec:    "map=",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeries(tt.spec)
			if tt.wantErr {
				if !errors.Is(err, readiness.ErrConfiguration) {
					t.Fatalf("ParseSeries() error = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSeries() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSeries() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseSeries()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestReadSeriesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.yaml")
	doc := "series:\n  - name: map\n    key: k:map\n  - name: share\n    key: k:share\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("failed to write series file: %v", err)
	}

	got, err := ReadSeriesFile(path)
	if err != nil {
		t.Fatalf("ReadSeriesFile() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "map" || got[1].Key != "k:share" {
		t.Errorf("ReadSeriesFile() = %v", got)
	}

	if _, err := ReadSeriesFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("ReadSeriesFile() on a missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage:  "memory",
			Output:   "stdout",
			Margin:   2,
			Interval: 20 * time.Second,
			Series:   []readiness.Series{{Name: "map", Key: "k:map"}, {Name: "share", Key: "k:share"}},
		}
	}

	tests := []struct {
		name       string
		mutate     func(*Config)
		wantErr    bool
		wantConfig bool
	}{
		{"valid", func(*Config) {}, false, false},
		{"zero series", func(c *Config) { c.Series = nil }, true, true},
		{"duplicate series", func(c *Config) { c.Series[1].Name = "map" }, true, true},
		{"negative margin", func(c *Config) { c.Margin = -1 }, true, true},
		{"zero margin", func(c *Config) { c.Margin = 0 }, false, false},
		{"zero interval", func(c *Config) { c.Interval = 0 }, true, false},
		{"negative backoff", func(c *Config) { c.MaxBackoff = -time.Second }, true, false},
		{"unknown storage", func(c *Config) { c.Storage = "etcd" }, true, false},
		{"unknown output", func(c *Config) { c.Output = "kafka" }, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantConfig && !errors.Is(err, readiness.ErrConfiguration) {
				t.Errorf("Validate() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestLoad_SeriesFileOverridesSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.yaml")
	if err := os.WriteFile(path, []byte("series:\n  - name: only\n    key: k:only\n"), 0o600); err != nil {
		t.Fatalf("failed to write series file: %v", err)
	}

	cfg := &Config{
		Storage:    "memory",
		Output:     "none",
		Margin:     2,
		Interval:   time.Second,
		SeriesSpec: DefaultSeries,
		SeriesFile: path,
	}
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Series) != 1 || cfg.Series[0].Name != "only" {
		t.Errorf("Series = %v, want the series file contents", cfg.Series)
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		want         int
	}{
		{"valid integer", "42", 10, 42},
		{"invalid integer", "not-a-number", 10, 10},
		{"not set", "", 99, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.envValue)
			if got := getEnvInt("TEST_INT", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"valid duration", "5m", time.Minute, 5 * time.Minute},
		{"invalid duration", "not-a-duration", 30 * time.Second, 30 * time.Second},
		{"not set", "", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)
			if got := getEnvDuration("TEST_DURATION", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
