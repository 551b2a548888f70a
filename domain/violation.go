package domain

import (
	"fmt"
	"proctor/errors"
	"time"
)

type ViolationType string

const (
	ApplicationBlocked        ViolationType = "application_blocked"
	ProcessTerminationAttempt ViolationType = "process_termination_attempt"
	FaceAbsence               ViolationType = "face_absence"
	MultipleFaces             ViolationType = "multiple_faces"
	SuspiciousMovement        ViolationType = "suspicious_movement"
	VoiceActivity             ViolationType = "voice_activity"
	MultipleSpeakers          ViolationType = "multiple_speakers"
	ScreenSwitch              ViolationType = "screen_switch"
	ShortcutBlocked           ViolationType = "shortcut_blocked"
	UnauthorizedWebsite       ViolationType = "unauthorized_website"
)

var violationTypes = map[ViolationType]struct{}{
	ApplicationBlocked: {}, ProcessTerminationAttempt: {}, FaceAbsence: {},
	MultipleFaces: {}, SuspiciousMovement: {}, VoiceActivity: {},
	MultipleSpeakers: {}, ScreenSwitch: {}, ShortcutBlocked: {},
	UnauthorizedWebsite: {},
}

func ParseViolationType(s string) (ViolationType, error) {
	t := ViolationType(s)
	if _, ok := violationTypes[t]; !ok {
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownViolationType, s)
	}
	return t, nil
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	}
	return "", fmt.Errorf("%w: %q", errors.ErrUnknownSeverity, s)
}

// ViolationEvent is what a detector or a participant reports. It is consumed
// once by the escalation engine and then persisted as a Violation.
type ViolationEvent struct {
	ParticipantID string
	Type          ViolationType
	Severity      Severity
	Description   string
	Timestamp     time.Time
}

type Violation struct {
	ID            string
	ParticipantID string
	ExamSessionID int64
	Type          ViolationType
	Severity      Severity
	Description   string
	Timestamp     time.Time
}
