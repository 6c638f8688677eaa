package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tolerance != DefaultTolerance {
		t.Fatalf("tolerance=%v", cfg.Tolerance)
	}
	if cfg.Workers != DefaultWorkers {
		t.Fatalf("workers=%d", cfg.Workers)
	}
	if cfg.ParseTimeout != DefaultParseTimeout {
		t.Fatalf("timeout=%s", cfg.ParseTimeout)
	}
	if cfg.Profile().VerticalStrategy != "lines" {
		t.Fatalf("profile=%+v", cfg.Profile())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CORETAX_TOLERANCE", "1.0")
	t.Setenv("PARSE_WORKERS", "1")
	t.Setenv("PARSE_TIMEOUT", "5s")
	t.Setenv("TABLE_SNAP_TOLERANCE", "4.5")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tolerance != 1.0 || cfg.Workers != 1 || cfg.ParseTimeout != 5*time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Profile().SnapTolerance != 4.5 {
		t.Fatalf("snap=%v", cfg.Profile().SnapTolerance)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "coretax.yaml")
	body := `
tolerance: 1.5
workers: 2
parse_timeout: 10s
table_profile: legacy
profiles:
  legacy:
    vertical_strategy: text
    snap_tolerance: 5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CORETAX_CONFIG", path)
	t.Setenv("PARSE_WORKERS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tolerance != 1.5 {
		t.Fatalf("tolerance=%v", cfg.Tolerance)
	}
	if cfg.Workers != 3 {
		t.Fatalf("env should win, workers=%d", cfg.Workers)
	}
	if cfg.ParseTimeout != 10*time.Second {
		t.Fatalf("timeout=%s", cfg.ParseTimeout)
	}
	p := cfg.Profile()
	if cfg.TableProfile != "legacy" || p.VerticalStrategy != "text" || p.HorizontalStrategy != "lines" || p.SnapTolerance != 5 {
		t.Fatalf("profile=%s %+v", cfg.TableProfile, p)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero tolerance", mutate: func(c *Config) { c.Tolerance = 0 }},
		{name: "no workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "unknown profile", mutate: func(c *Config) { c.TableProfile = "missing" }},
		{name: "bad strategy", mutate: func(c *Config) {
			p := c.Profiles[DefaultProfile]
			p.VerticalStrategy = "explicit"
			c.Profiles[DefaultProfile] = p
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				Tolerance:    DefaultTolerance,
				Workers:      1,
				ParseTimeout: time.Second,
				TableProfile: DefaultProfile,
				Profiles:     DefaultProfiles(),
			}
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
