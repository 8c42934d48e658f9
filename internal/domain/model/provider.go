package model

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryText      Category = "text"
	CategoryImage     Category = "image"
	CategoryEmbedding Category = "embedding"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryText, CategoryImage, CategoryEmbedding:
		return true
	}
	return false
}

const (
	DefaultMaxRetries = 2
	DefaultTimeout    = 60 * time.Second
	// DefaultMaxOutputTokens caps text calls whose config leaves the cap unset.
	DefaultMaxOutputTokens = 2000
)

// Pricing is a per-provider price table in micro-units of the run currency.
// Unit prices are quoted per 1K units (tokens for text, images for image backends).
type Pricing struct {
	InputPer1KMicros  int64 `yaml:"input_per_1k_micros" json:"input_per_1k_micros"`
	OutputPer1KMicros int64 `yaml:"output_per_1k_micros" json:"output_per_1k_micros"`
	PerCallMicros     int64 `yaml:"per_call_micros" json:"per_call_micros"`
}

// UsageBased reports whether the table prices units at all.
func (p Pricing) UsageBased() bool {
	return p.InputPer1KMicros > 0 || p.OutputPer1KMicros > 0
}

// Cost prices the given usage. Fractions of a micro are rounded up.
func (p Pricing) Cost(inputUnits, outputUnits int) int64 {
	return per1K(int64(inputUnits), p.InputPer1KMicros) +
		per1K(int64(outputUnits), p.OutputPer1KMicros) +
		p.PerCallMicros
}

func per1K(units, price int64) int64 {
	if units <= 0 || price <= 0 {
		return 0
	}
	return (units*price + 999) / 1000
}

// ProviderConfig is the static description of one backend. Immutable for a run.
type ProviderConfig struct {
	Name            string        `yaml:"name" json:"name"`
	Kind            string        `yaml:"kind" json:"kind"`
	Category        Category      `yaml:"category" json:"category"`
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Priority        int           `yaml:"priority" json:"priority"`
	Model           string        `yaml:"model" json:"model"`
	Endpoint        string        `yaml:"endpoint" json:"endpoint,omitempty"`
	APIKey          string        `yaml:"api_key" json:"-"`
	Pricing         Pricing       `yaml:"pricing" json:"pricing"`
	MaxRetries      *int          `yaml:"max_retries" json:"max_retries,omitempty"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens" json:"max_output_tokens"`
	MaxConcurrent   int           `yaml:"max_concurrent" json:"max_concurrent"`
	RatePerSecond   float64       `yaml:"rate_per_second" json:"rate_per_second"`
}

// Retries returns the number of additional attempts after the first one.
func (c ProviderConfig) Retries() int {
	if c.MaxRetries == nil || *c.MaxRetries < 0 {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

func (c ProviderConfig) CallTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// OutputAllowance is the most output one call may produce: one image, or the
// text token cap sent to the backend.
func (c ProviderConfig) OutputAllowance() int {
	if c.Category == CategoryImage {
		return 1
	}
	if c.MaxOutputTokens <= 0 {
		return DefaultMaxOutputTokens
	}
	return c.MaxOutputTokens
}

// EstimateCost is the conservative price of one call with the given input size:
// the output side is charged at the full OutputAllowance.
func (c ProviderConfig) EstimateCost(inputUnits int) int64 {
	return c.Pricing.Cost(inputUnits, c.OutputAllowance())
}

func NormalizeProviderName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
