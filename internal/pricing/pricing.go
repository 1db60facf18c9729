// Package pricing resolves the effective metered rate for a tool, combining
// the tool's global billing config with an optional per-workspace override.
package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Config is the resolved pricing for a tool within a workspace. A tool is
// either unconfigured (no usable rate anywhere) or metered at a fixed
// per-unit rate.
type Config struct {
	metered bool
	rate    decimal.Decimal
	unit    string
}

func Unconfigured() Config {
	return Config{}
}

func Metered(rate decimal.Decimal, unit string) Config {
	return Config{metered: true, rate: rate, unit: unit}
}

func (c Config) IsMetered() bool { return c.metered }

// Rate returns the per-unit rate. Only meaningful when IsMetered.
func (c Config) Rate() decimal.Decimal { return c.rate }

func (c Config) Unit() string { return c.unit }

// rawConfig is the loosely-typed JSON shape stored on tools.billing_config
// and workspace_tools.pricing_override. All fields are optional.
type rawConfig struct {
	Rate *json.Number `json:"rate"`
	Unit string       `json:"unit"`
}

// Resolve computes the effective rate for a usage event. The override wins
// only when its rate field is explicitly non-null; an override object with a
// null rate means "no override", not "free". A negative rate anywhere is
// treated as unconfigured.
func Resolve(toolConfig, override []byte) Config {
	if cfg, ok := parse(override); ok {
		return cfg
	}
	if cfg, ok := parse(toolConfig); ok {
		return cfg
	}
	return Unconfigured()
}

func parse(blob []byte) (Config, bool) {
	if len(blob) == 0 {
		return Config{}, false
	}
	var raw rawConfig
	if err := json.Unmarshal(blob, &raw); err != nil {
		return Config{}, false
	}
	if raw.Rate == nil {
		return Config{}, false
	}
	rate, err := decimal.NewFromString(raw.Rate.String())
	if err != nil || rate.IsNegative() {
		return Config{}, false
	}
	unit := raw.Unit
	if unit == "" {
		unit = "unit"
	}
	return Metered(rate, unit), true
}
