package errors

import (
	"fmt"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestReject_KeepsCategoryAndMessage(t *testing.T) {
	req := require.New(t)

	// Given a rejection built from a validation error
	err := Reject(ErrParticipantNotFound, "ID Peserta %s tidak terdaftar", "P9")

	// Then the category survives and the message is readable
	req.ErrorIs(err, ErrParticipantNotFound)
	req.ErrorIs(err, ErrValidation)
	msg, ok := UserMessage(err)
	req.True(ok)
	req.Equal("ID Peserta P9 tidak terdaftar", msg)
}

func TestUserMessage_AbsentOnPlainError(t *testing.T) {
	req := require.New(t)
	_, ok := UserMessage(fmt.Errorf("boom"))
	req.False(ok)
}

func TestPersistence(t *testing.T) {
	req := require.New(t)

	// Given a raw storage error
	err := Persistence("get participant", badger.ErrConflict)

	// Then it is categorised as persistence and still exposes the cause
	req.ErrorIs(err, ErrPersistence)
	req.ErrorIs(err, badger.ErrConflict)

	// Given an already categorised error, it passes through untouched
	req.Equal(ErrRequestNotPending, Persistence("approve", ErrRequestNotPending))
	req.Equal(ErrParticipantNotFound, Persistence("get", ErrParticipantNotFound))
	req.NoError(Persistence("noop", nil))
}

func TestProtocolErrorsCategory(t *testing.T) {
	req := require.New(t)
	req.ErrorIs(ErrUnknownMessageType, ErrProtocol)
	req.ErrorIs(ErrUnhandledMessageType, ErrProtocol)
	req.False(Is(ErrUnknownMessageType, ErrValidation))
}
