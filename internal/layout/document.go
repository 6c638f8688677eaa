// Package layout turns PDF bytes into per-page plain text and table grids.
package layout

import (
	"context"
	"strings"

	"coretax/internal/config"
)

// Row is one decoded table row. A nil cell means the grid had no text there.
type Row = []*string

type Page struct {
	Number int
	Text   string
	Table  []Row
}

type Document struct {
	Pages []Page
}

// FullText joins page texts with newlines.
func (d *Document) FullText() string {
	if d == nil {
		return ""
	}
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n")
}

// Decoder decodes a whole PDF. Implementations must not panic on malformed input.
type Decoder interface {
	Decode(ctx context.Context, raw []byte) (*Document, error)
}

type Strategy string

const (
	StrategyLines Strategy = "lines"
	StrategyText  Strategy = "text"
)

type TableSettings struct {
	VerticalStrategy   Strategy
	HorizontalStrategy Strategy
	SnapTolerance      float64
	MinColumnGap       float64
}

func DefaultTableSettings() TableSettings {
	return SettingsFromProfile(config.DefaultProfiles()[config.DefaultProfile])
}

func SettingsFromProfile(p config.TableProfile) TableSettings {
	return TableSettings{
		VerticalStrategy:   Strategy(p.VerticalStrategy),
		HorizontalStrategy: Strategy(p.HorizontalStrategy),
		SnapTolerance:      p.SnapTolerance,
		MinColumnGap:       p.MinColumnGap,
	}
}

// Cell returns a pointer to s, or nil when s is blank.
func Cell(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
