package domain

import (
	"fmt"
	"os"
	"proctor/errors"

	"gopkg.in/yaml.v3"
)

// ExamRules is the operator-maintained policy pushed to participants with
// CONFIG_UPDATE and used by the escalation engine.
type ExamRules struct {
	Escalation   EscalationPolicy `yaml:"escalation"`
	Applications struct {
		Allowed []string `yaml:"allowed"`
		Blocked []string `yaml:"blocked"`
	} `yaml:"applications"`
	FaceAbsenceThreshold int `yaml:"face_absence_threshold"`
}

func DefaultExamRules() ExamRules {
	var r ExamRules
	r.Escalation = DefaultEscalationPolicy()
	r.FaceAbsenceThreshold = 5
	return r
}

// LoadExamRules reads a YAML file. Missing fields keep their defaults.
func LoadExamRules(path string) (ExamRules, error) {
	rules := DefaultExamRules()
	if path == "" {
		return rules, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ExamRules{}, fmt.Errorf("read exam rules: %w", err)
	}
	return ParseExamRules(b)
}

func ParseExamRules(b []byte) (ExamRules, error) {
	rules := DefaultExamRules()
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return ExamRules{}, fmt.Errorf("%w: %v", errors.ErrInvalidRules, err)
	}
	if err := rules.Escalation.Validate(); err != nil {
		return ExamRules{}, err
	}
	return rules, nil
}

// Payload flattens the rules into the CONFIG_UPDATE data map.
func (r ExamRules) Payload() map[string]any {
	return map[string]any{
		"allowed_applications":   nonNil(r.Applications.Allowed),
		"blocked_applications":   nonNil(r.Applications.Blocked),
		"warnings_before_flag":   r.Escalation.FlagThreshold,
		"warnings_before_lock":   r.Escalation.LockThreshold,
		"face_absence_threshold": r.FaceAbsenceThreshold,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
