package pipeline

import (
	"errors"
	"fmt"
)

// ErrConfiguration indicates invalid startup parameters. Configuration
// errors are global and fatal: no region can be processed safely.
var ErrConfiguration = errors.New("invalid configuration")

// Config holds all pipeline tuning parameters.
type Config struct {
	// MinMapQ drops reads below this mapping quality during scanning.
	MinMapQ int
	// MinBaseQual drops observations with lower mean base quality at the edit.
	MinBaseQual float64
	// MergeGap is the maximum reference-base gap between elementary
	// edits merged into one composite event.
	MergeGap int
	// RescueWindow bounds the position search for candidate rescue.
	RescueWindow int64
	// MinSupport is the minimum supporting-read count for
	// alignment-driven calls.
	MinSupport int
	// Margin is the decision-rule probability margin below which the
	// conservative tie-break applies.
	Margin float64
	// Flank is the reference window for sequence-context features.
	Flank int64
	// Workers sizes the region worker pool; 0 means NumCPU.
	Workers int
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		MinMapQ:      20,
		MinBaseQual:  15,
		MergeGap:     5,
		RescueWindow: 10,
		MinSupport:   2,
		Margin:       0.05,
		Flank:        20,
		Workers:      0,
	}
}

// Validate checks every parameter, wrapping failures in ErrConfiguration.
func (c Config) Validate() error {
	if c.MinMapQ < 0 {
		return fmt.Errorf("%w: min mapping quality %d", ErrConfiguration, c.MinMapQ)
	}
	if c.MinBaseQual < 0 {
		return fmt.Errorf("%w: min base quality %g", ErrConfiguration, c.MinBaseQual)
	}
	if c.MergeGap < 0 {
		return fmt.Errorf("%w: merge gap %d", ErrConfiguration, c.MergeGap)
	}
	if c.RescueWindow < 0 {
		return fmt.Errorf("%w: rescue window %d", ErrConfiguration, c.RescueWindow)
	}
	if c.MinSupport < 1 {
		return fmt.Errorf("%w: min support %d", ErrConfiguration, c.MinSupport)
	}
	if c.Margin < 0 || c.Margin >= 1 {
		return fmt.Errorf("%w: decision margin %g", ErrConfiguration, c.Margin)
	}
	if c.Flank < 1 {
		return fmt.Errorf("%w: flank size %d", ErrConfiguration, c.Flank)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrConfiguration, c.Workers)
	}
	return nil
}
