package services

import (
	"fmt"
	"proctor/domain"
	"proctor/errors"
	"proctor/protocol"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterPayload struct {
	Name         string `validate:"max=200"`
	ComputerIP   string `validate:"omitempty,ip"`
	ComputerName string `validate:"max=255"`
}

type ViolationPayload struct {
	ViolationType string `validate:"required"`
	Severity      string `validate:"required"`
	Description   string `validate:"max=2000"`
}

type PermissionPayload struct {
	RequestType     string `validate:"required,max=64"`
	DurationMinutes int    `validate:"min=1,max=240"`
	Reason          string `validate:"max=500"`
}

func ParseRegisterPayload(d protocol.Data) (RegisterPayload, error) {
	p := RegisterPayload{
		Name:         strings.TrimSpace(d.String("name")),
		ComputerIP:   d.String("computer_ip"),
		ComputerName: d.String("computer_name"),
	}
	if err := validate.Struct(p); err != nil {
		return RegisterPayload{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return p, nil
}

// ParseViolationPayload applies the default severity (medium) and checks
// both enums against their closed sets.
func ParseViolationPayload(participantID string, d protocol.Data) (domain.ViolationEvent, error) {
	p := ViolationPayload{
		ViolationType: d.String("violation_type"),
		Severity:      d.StringOr("severity", string(domain.SeverityMedium)),
		Description:   d.String("description"),
	}
	if err := validate.Struct(p); err != nil {
		return domain.ViolationEvent{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	vt, err := domain.ParseViolationType(p.ViolationType)
	if err != nil {
		return domain.ViolationEvent{}, err
	}
	sev, err := domain.ParseSeverity(p.Severity)
	if err != nil {
		return domain.ViolationEvent{}, err
	}
	return domain.ViolationEvent{
		ParticipantID: participantID,
		Type:          vt,
		Severity:      sev,
		Description:   p.Description,
	}, nil
}

func ParsePermissionPayload(d protocol.Data) (PermissionPayload, error) {
	p := PermissionPayload{
		RequestType:     d.StringOr("request_type", domain.DefaultRequestType),
		DurationMinutes: d.Int("duration_minutes", domain.DefaultDurationMinutes),
		Reason:          d.String("reason"),
	}
	if err := validate.Struct(p); err != nil {
		return PermissionPayload{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return p, nil
}
