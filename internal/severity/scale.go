// Package severity rescales raw analysis scores into the display range shown
// to patients and providers.
package severity

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/medspa-portal/internal/config"
)

// Type selects the curve applied to a normalized score.
type Type string

const (
	Linear      Type = "linear"
	Logarithmic Type = "logarithmic"
	Custom      Type = "custom"
)

// ParseType parses a scaling type name. An empty name means Linear.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "logarithmic", "log":
		return Logarithmic, nil
	case "custom", "power":
		return Custom, nil
	}
	return "", eris.Errorf("severity: unknown scaling type %q", s)
}

// UIRange is the closed interval display scores are mapped into.
type UIRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Config controls how raw scores are rescaled.
type Config struct {
	Range    UIRange
	Type     Type
	Exponent float64
}

// DefaultConfig maps [0,100] linearly onto [60,95].
func DefaultConfig() Config {
	return Config{
		Range:    UIRange{Min: 60, Max: 95},
		Type:     Linear,
		Exponent: 1,
	}
}

// FromConfig builds a validated Config from application settings.
func FromConfig(c config.SeverityConfig) (Config, error) {
	t, err := ParseType(c.ScalingType)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Range:    UIRange{Min: c.UIMin, Max: c.UIMax},
		Type:     t,
		Exponent: c.Exponent,
	}
	if cfg.Exponent == 0 {
		cfg.Exponent = 1
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the range and curve parameters.
func (c Config) Validate() error {
	if math.IsNaN(c.Range.Min) || math.IsNaN(c.Range.Max) || c.Range.Min >= c.Range.Max {
		return eris.Errorf("severity: invalid ui range [%v, %v]", c.Range.Min, c.Range.Max)
	}
	if _, err := ParseType(string(c.Type)); err != nil {
		return err
	}
	if c.Type == Custom && !(c.Exponent > 0) {
		return eris.Errorf("severity: custom scaling requires a positive exponent, got %v", c.Exponent)
	}
	return nil
}

// Scale rescales score using the configured curve.
func (c Config) Scale(score, factor float64) float64 {
	return c.ScaleWith(score, factor, c.Type)
}

// ScaleWith rescales score with an explicit curve:
//
//  1. clamp score into [0,100] and normalize to [0,1]
//  2. apply the curve
//  3. multiply by factor
//  4. map linearly into the UI range, clamping at the edges
//
// A NaN or non-positive factor is treated as 1.
func (c Config) ScaleWith(score, factor float64, t Type) float64 {
	n := clamp(score, 0, 100) / 100

	switch t {
	case Logarithmic:
		n = math.Log10(1 + 9*n)
	case Custom:
		exp := c.Exponent
		if !(exp > 0) {
			exp = 1
		}
		n = math.Pow(n, exp)
	}

	if math.IsNaN(factor) || factor <= 0 {
		factor = 1
	}
	n *= factor

	out := c.Range.Min + n*(c.Range.Max-c.Range.Min)
	return clamp(out, c.Range.Min, c.Range.Max)
}

// Scale rescales score with DefaultConfig.
func Scale(score, factor float64) float64 {
	return DefaultConfig().Scale(score, factor)
}

// Display severity levels, lowest first.
const (
	LevelMild        = "Mild"
	LevelModerate    = "Moderate"
	LevelSignificant = "Significant"
	LevelSevere      = "Severe"
)

// Level buckets a display score into quarters of the range.
func (c Config) Level(display float64) string {
	p := (clamp(display, c.Range.Min, c.Range.Max) - c.Range.Min) / (c.Range.Max - c.Range.Min)
	switch {
	case p < 0.25:
		return LevelMild
	case p < 0.5:
		return LevelModerate
	case p < 0.75:
		return LevelSignificant
	default:
		return LevelSevere
	}
}

// clamp also maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
