package model

import (
	"fmt"

	"product-content-ai/internal/domain"
)

// CostLimits bound a run; both values are micro-units of the same currency.
type CostLimits struct {
	MaxPerRunMicros  int64 `yaml:"max_per_run_micros" json:"max_per_run_micros"`
	MaxPerTaskMicros int64 `yaml:"max_per_task_micros" json:"max_per_task_micros"`
}

func (l CostLimits) Validate() error {
	if l.MaxPerRunMicros <= 0 || l.MaxPerTaskMicros <= 0 {
		return fmt.Errorf("cost limits must be positive (run=%d task=%d): %w", l.MaxPerRunMicros, l.MaxPerTaskMicros, domain.ErrConfig)
	}
	return nil
}

// FormatMicros renders micro-units as a decimal amount, e.g. 1234567 -> "1.234567".
func FormatMicros(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%06d", sign, v/1_000_000, v%1_000_000)
}
