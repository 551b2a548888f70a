package domain

import "time"

type ExamStatus string

const (
	ExamActive    ExamStatus = "ACTIVE"
	ExamCompleted ExamStatus = "COMPLETED"
)

type ExamSession struct {
	ID        int64
	Name      string
	Status    ExamStatus
	StartTime time.Time
	EndTime   *time.Time
}

func (e ExamSession) IsActive() bool {
	return e.Status == ExamActive
}

// Accepts tells whether a participant enrolled in examSessionID may register
// against this session.
func (e ExamSession) Accepts(examSessionID int64) bool {
	return e.IsActive() && e.ID == examSessionID
}
