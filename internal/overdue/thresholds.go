package overdue

import (
	"fmt"
	"strings"
)

// Thresholds are the hour marks at which a ticket enters each urgency band.
type Thresholds struct {
	Warning  float64 `yaml:"warning" json:"warning"`
	Critical float64 `yaml:"critical" json:"critical"`
	Severe   float64 `yaml:"severe" json:"severe"`
}

func (t Thresholds) validate() error {
	if t.Warning <= 0 {
		return fmt.Errorf("warning must be > 0, got %v", t.Warning)
	}
	if t.Critical < t.Warning || t.Severe < t.Critical {
		return fmt.Errorf("bands must be ordered warning <= critical <= severe, got %v/%v/%v", t.Warning, t.Critical, t.Severe)
	}
	return nil
}

// DefaultKey names the fallback row in a threshold override map.
const DefaultKey = "default"

// ThresholdTable maps a severity code to its thresholds. Unknown codes use Default.
type ThresholdTable struct {
	BySeverity map[string]Thresholds
	Default    Thresholds
}

func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		BySeverity: map[string]Thresholds{
			"1": {Warning: 4, Critical: 12, Severe: 24},
			"2": {Warning: 8, Critical: 24, Severe: 48},
			"3": {Warning: 24, Critical: 72, Severe: 168},
		},
		Default: Thresholds{Warning: 48, Critical: 168, Severe: 336},
	}
}

func (t ThresholdTable) For(severity string) Thresholds {
	if th, ok := t.BySeverity[strings.TrimSpace(severity)]; ok {
		return th
	}
	return t.Default
}

// WithOverrides returns a copy of t with the given rows replaced. The key
// "default" replaces the fallback row.
func (t ThresholdTable) WithOverrides(overrides map[string]Thresholds) (ThresholdTable, error) {
	out := ThresholdTable{
		BySeverity: make(map[string]Thresholds, len(t.BySeverity)+len(overrides)),
		Default:    t.Default,
	}
	for k, v := range t.BySeverity {
		out.BySeverity[k] = v
	}
	for k, v := range overrides {
		key := strings.TrimSpace(k)
		if err := v.validate(); err != nil {
			return t, fmt.Errorf("severity %q: %w", key, err)
		}
		if strings.EqualFold(key, DefaultKey) {
			out.Default = v
			continue
		}
		out.BySeverity[key] = v
	}
	return out, nil
}
