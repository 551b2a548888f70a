package domain

import (
	"fmt"
	"math"
	"proctor/errors"
)

const (
	DefaultFlagThreshold    = 3
	DefaultLockThreshold    = 5
	DefaultViolationPenalty = 5.0
	DefaultWarningPenalty   = 2.0
)

// Decision is what the escalation rule asks the engine to do after a warning.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionFlag
	DecisionLock
)

func (d Decision) String() string {
	switch d {
	case DecisionFlag:
		return "flag"
	case DecisionLock:
		return "lock"
	default:
		return "none"
	}
}

type EscalationPolicy struct {
	FlagThreshold    int     `yaml:"warnings_before_flag"`
	LockThreshold    int     `yaml:"warnings_before_lock"`
	ViolationPenalty float64 `yaml:"violation_penalty"`
	WarningPenalty   float64 `yaml:"warning_penalty"`
}

func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		FlagThreshold:    DefaultFlagThreshold,
		LockThreshold:    DefaultLockThreshold,
		ViolationPenalty: DefaultViolationPenalty,
		WarningPenalty:   DefaultWarningPenalty,
	}
}

func (p EscalationPolicy) Validate() error {
	if p.FlagThreshold < 1 || p.LockThreshold < 1 {
		return fmt.Errorf("%w: thresholds must be positive (flag=%d, lock=%d)",
			errors.ErrInvalidRules, p.FlagThreshold, p.LockThreshold)
	}
	if p.ViolationPenalty < 0 || p.WarningPenalty < 0 {
		return fmt.Errorf("%w: penalties must not be negative", errors.ErrInvalidRules)
	}
	return nil
}

// Score is max(0, 100 - violationPenalty*v - warningPenalty*w).
func (p EscalationPolicy) Score(violations, warnings int) float64 {
	score := MaxIntegrityScore - p.ViolationPenalty*float64(violations) - p.WarningPenalty*float64(warnings)
	return math.Max(0, score)
}

// Decide looks at the warning count after the increment. Lock is checked
// first so a single violation never yields both a lock and a flag.
func (p EscalationPolicy) Decide(warningCount int) Decision {
	switch {
	case warningCount >= p.LockThreshold:
		return DecisionLock
	case warningCount >= p.FlagThreshold:
		return DecisionFlag
	default:
		return DecisionNone
	}
}

// IntegrityScore applies the default penalties.
func IntegrityScore(violations, warnings int) float64 {
	return DefaultEscalationPolicy().Score(violations, warnings)
}
