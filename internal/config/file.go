package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TableProfile holds table-detection settings for one document family.
type TableProfile struct {
	VerticalStrategy   string  `yaml:"vertical_strategy"`   // lines | text
	HorizontalStrategy string  `yaml:"horizontal_strategy"` // lines | text
	SnapTolerance      float64 `yaml:"snap_tolerance"`
	MinColumnGap       float64 `yaml:"min_column_gap"`
}

func (p TableProfile) Validate() error {
	for _, s := range []string{p.VerticalStrategy, p.HorizontalStrategy} {
		switch s {
		case "lines", "text":
		default:
			return fmt.Errorf("unsupported strategy %q (use lines or text)", s)
		}
	}
	if p.SnapTolerance <= 0 {
		return fmt.Errorf("snap_tolerance must be > 0")
	}
	if p.MinColumnGap < 0 {
		return fmt.Errorf("min_column_gap must be >= 0")
	}
	return nil
}

// DefaultProfiles returns the built-in profiles. "coretax" follows the ruled item table of the e-Faktur template.
func DefaultProfiles() map[string]TableProfile {
	return map[string]TableProfile{
		DefaultProfile: {
			VerticalStrategy:   "lines",
			HorizontalStrategy: "lines",
			SnapTolerance:      DefaultSnapTolerance,
			MinColumnGap:       8,
		},
		"plain": {
			VerticalStrategy:   "text",
			HorizontalStrategy: "text",
			SnapTolerance:      DefaultSnapTolerance,
			MinColumnGap:       12,
		},
	}
}

// FileConfig is the optional YAML overlay referenced by CORETAX_CONFIG.
type FileConfig struct {
	Tolerance    *float64                `yaml:"tolerance"`
	Workers      *int                    `yaml:"workers"`
	ParseTimeout string                  `yaml:"parse_timeout"`
	PDFPreflight *bool                   `yaml:"pdf_preflight"`
	TableProfile string                  `yaml:"table_profile"`
	Profiles     map[string]TableProfile `yaml:"profiles"`
}

// LoadFile reads and parses a YAML config file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.ParseTimeout != "" {
		if _, err := time.ParseDuration(fc.ParseTimeout); err != nil {
			return nil, fmt.Errorf("parse config %s: parse_timeout: %w", path, err)
		}
	}
	return &fc, nil
}

func (fc *FileConfig) apply(cfg *Config) {
	if fc.Tolerance != nil {
		cfg.Tolerance = *fc.Tolerance
	}
	if fc.Workers != nil {
		cfg.Workers = *fc.Workers
	}
	if fc.ParseTimeout != "" {
		if d, err := time.ParseDuration(fc.ParseTimeout); err == nil {
			cfg.ParseTimeout = d
		}
	}
	if fc.PDFPreflight != nil {
		cfg.PDFPreflight = *fc.PDFPreflight
	}
	for name, p := range fc.Profiles {
		// Missing keys inherit from the built-in profile of the same name.
		base, ok := cfg.Profiles[name]
		if !ok {
			base = cfg.Profiles[DefaultProfile]
		}
		if p.VerticalStrategy != "" {
			base.VerticalStrategy = strings.ToLower(p.VerticalStrategy)
		}
		if p.HorizontalStrategy != "" {
			base.HorizontalStrategy = strings.ToLower(p.HorizontalStrategy)
		}
		if p.SnapTolerance > 0 {
			base.SnapTolerance = p.SnapTolerance
		}
		if p.MinColumnGap > 0 {
			base.MinColumnGap = p.MinColumnGap
		}
		cfg.Profiles[name] = base
	}
	if fc.TableProfile != "" {
		if _, set := os.LookupEnv("TABLE_PROFILE"); !set {
			cfg.TableProfile = fc.TableProfile
		}
	}
}
