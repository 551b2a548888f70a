package services

import (
	"context"
	"fmt"
	"log/slog"
	"proctor/domain"
	"proctor/errors"
	"proctor/mocks"
	"proctor/observability"
	"proctor/protocol"
	"proctor/runtime"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRegistrationService_Register(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	exam := domain.ExamSession{ID: 7, Name: "UTS", Status: domain.ExamActive, StartTime: now}
	roster := domain.NewParticipant("P1", "Budi Santoso", 7, now)

	newService := func(t *testing.T) (*RegistrationService, *mocks.MockIParticipantRepository, *mocks.MockIExamSessionRepository) {
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		exams := mocks.NewMockIExamSessionRepository(ctrl)
		s := NewRegistrationService(participants, exams, logs.GetLoggerFromLevel(slog.LevelDebug))
		s.now = func() time.Time { return now }
		return s, participants, exams
	}

	t.Run("should activate a rostered participant of the current session", func(t *testing.T) {
		req := require.New(t)
		s, participants, exams := newService(t)
		registered := roster.Register("10.0.0.12", "LAB-12", now)

		participants.EXPECT().GetParticipant("P1").Return(roster, nil)
		exams.EXPECT().GetActiveExamSession().Return(exam, nil)
		participants.EXPECT().ActivateParticipant("P1", "10.0.0.12", "LAB-12", now).Return(registered, nil)

		p, got, err := s.Register("P1", RegisterPayload{Name: "BUDI SANTOSO", ComputerIP: "10.0.0.12", ComputerName: "LAB-12"})

		req.NoError(err)
		req.Equal(int64(7), got.ID)
		req.True(p.IsActive())
	})

	t.Run("should stop at the roster check", func(t *testing.T) {
		req := require.New(t)
		s, participants, _ := newService(t)

		// The session is never consulted and nothing is written
		participants.EXPECT().GetParticipant("X9").Return(domain.Participant{}, errors.ErrParticipantNotFound)

		_, _, err := s.Register("X9", RegisterPayload{Name: "Siapa"})

		req.ErrorIs(err, errors.ErrParticipantNotFound)
		msg, ok := errors.UserMessage(err)
		req.True(ok)
		req.Equal("ID Peserta X9 tidak terdaftar. Silakan hubungi pengawas.", msg)
	})

	t.Run("should check the name before the session", func(t *testing.T) {
		req := require.New(t)
		s, participants, _ := newService(t)

		participants.EXPECT().GetParticipant("P1").Return(roster, nil)

		_, _, err := s.Register("P1", RegisterPayload{Name: "Andi"})

		req.ErrorIs(err, errors.ErrNameMismatch)
		msg, _ := errors.UserMessage(err)
		req.Equal("Nama tidak sesuai. Nama yang terdaftar: Budi Santoso", msg)
	})

	t.Run("should reject a participant of another session", func(t *testing.T) {
		req := require.New(t)
		s, participants, exams := newService(t)

		participants.EXPECT().GetParticipant("P1").Return(roster, nil)
		exams.EXPECT().GetActiveExamSession().Return(domain.ExamSession{ID: 8, Status: domain.ExamActive}, nil)
		participants.EXPECT().ActivateParticipant(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, _, err := s.Register("P1", RegisterPayload{Name: "Budi Santoso"})

		req.ErrorIs(err, errors.ErrSessionMismatch)
		msg, _ := errors.UserMessage(err)
		req.Equal(msgSessionMismatch, msg)
	})

	t.Run("should surface storage failures without a user message", func(t *testing.T) {
		req := require.New(t)
		s, participants, _ := newService(t)
		boom := errors.Persistence("get participant", errors.ErrSendFailed)

		participants.EXPECT().GetParticipant("P1").Return(domain.Participant{}, boom)

		_, _, err := s.Register("P1", RegisterPayload{Name: "Budi Santoso"})

		req.ErrorIs(err, errors.ErrPersistence)
		_, ok := errors.UserMessage(err)
		req.False(ok)
	})
}

func TestRegistrationService_Validate(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	roster := domain.NewParticipant("P1", "Budi Santoso", 7, now)

	t.Run("should explain that the session has not started", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		exams := mocks.NewMockIExamSessionRepository(ctrl)
		s := NewRegistrationService(participants, exams, logs.GetLoggerFromLevel(slog.LevelDebug))

		participants.EXPECT().GetParticipant("P1").Return(roster, nil)
		exams.EXPECT().GetActiveExamSession().Return(domain.ExamSession{}, errors.ErrNoActiveSession)

		_, err := s.Validate("P1", "")

		msg, ok := errors.UserMessage(err)
		req.True(ok)
		req.Equal(msgValidateNotStarted, msg)
	})

	t.Run("should skip the name check when no name is given", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		participants := mocks.NewMockIParticipantRepository(ctrl)
		exams := mocks.NewMockIExamSessionRepository(ctrl)
		s := NewRegistrationService(participants, exams, logs.GetLoggerFromLevel(slog.LevelDebug))

		participants.EXPECT().GetParticipant("P1").Return(roster, nil)
		exams.EXPECT().GetActiveExamSession().Return(domain.ExamSession{ID: 7, Status: domain.ExamActive}, nil)

		p, err := s.Validate("P1", "")

		req.NoError(err)
		req.Equal("Budi Santoso", p.Name)
	})
}

func TestRegistrationService_DisconnectIgnoresUnknown(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	s := NewRegistrationService(participants, mocks.NewMockIExamSessionRepository(ctrl), logs.GetLoggerFromLevel(slog.LevelDebug))

	participants.EXPECT().MarkDisconnected("ghost").Return(domain.Participant{}, errors.ErrParticipantNotFound)

	req.NoError(s.Disconnect("ghost"))
}

func TestMessageHandlers_StorageFailureGetsGenericRejection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	exams := mocks.NewMockIExamSessionRepository(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry(log)
	monitor := observability.NewMonitor(log, registry.Count)
	dispatcher := NewMessageHandlers(NewRegistrationService(participants, exams, log), nil, nil, nil, registry, monitor, log).
		Bind(runtime.NewDispatcher(log))

	// Given the roster cannot be read
	participants.EXPECT().GetParticipant("P1").
		Return(domain.Participant{}, errors.Persistence("get participant", fmt.Errorf("value log truncated")))

	// When P1 registers
	conn := &fakeConn{}
	err := dispatcher.Dispatch(runtime.WithConn(context.Background(), conn), "P1",
		protocol.New(protocol.Register, protocol.Data{"name": "Budi Santoso"}, "P1"))

	// Then the rejection blames the server, not the session
	req.ErrorIs(err, errors.ErrPersistence)
	acks := conn.ofType(protocol.RegisterAck)
	req.Len(acks, 1)
	req.Equal("rejected", acks[0].Data.String("status"))
	req.Equal(msgServerError, acks[0].Data.String("message"))
	req.NotEqual(msgSessionMismatch, acks[0].Data.String("message"))
	req.False(registry.IsConnected("P1"))
}
