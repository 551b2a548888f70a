package services

import (
	"log/slog"
	"proctor/auth"
	"proctor/errors"
	"proctor/infrastructure/storage"
	"proctor/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_EnsureOperator(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIOperatorRepository(ctrl)
	svc := NewAuthService(mockRepo, auth.NewTokens("secret", time.Hour), logs.GetLoggerFromLevel(slog.LevelDebug))

	t.Run("should provision the operator with a hashed password", func(t *testing.T) {
		req := require.New(t)
		password := "ComplexPass123!"

		mockRepo.EXPECT().
			CreateOperator("pengawas", gomock.Not(password)).
			Return(storage.Operator{ID: "op-1", Username: "pengawas"}, nil).
			Times(1)

		req.NoError(svc.EnsureOperator("pengawas", password))
	})

	t.Run("should keep an existing operator", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateOperator("pengawas", gomock.Any()).
			Return(storage.Operator{}, errors.ErrOperatorExists).
			Times(1)

		req.NoError(svc.EnsureOperator("pengawas", "ComplexPass123!"))
	})

	t.Run("should refuse a weak password before hashing", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateOperator(gomock.Any(), gomock.Any()).Times(0)

		err := svc.EnsureOperator("pengawas", "simple")

		req.ErrorIs(err, errors.ErrInvalidPassword)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIOperatorRepository(ctrl)
	tokens := auth.NewTokens("secret", time.Hour)
	svc := NewAuthService(mockRepo, tokens, logs.GetLoggerFromLevel(slog.LevelDebug))

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		password := "Secret123456!"

		hashedPassword, _ := auth.HashPassword(password)
		stored := storage.Operator{
			ID:           "op-1",
			Username:     "pengawas",
			PasswordHash: hashedPassword,
			Roles:        []string{storage.RoleOperator},
		}

		mockRepo.EXPECT().
			GetOperator("pengawas").
			Return(stored, nil).
			Times(1)

		token, err := svc.Login("pengawas", password)
		req.NoError(err)

		claims, err := tokens.Validate(token.String())
		req.NoError(err)
		req.Equal(stored.ID, claims.OperatorID)
		req.True(claims.HasRole(storage.RoleOperator))
	})

	t.Run("should return invalid credentials on a wrong password", func(t *testing.T) {
		req := require.New(t)

		hashedPassword, _ := auth.HashPassword("CorrectPassword123!")
		mockRepo.EXPECT().
			GetOperator("pengawas").
			Return(storage.Operator{Username: "pengawas", PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err := svc.Login("pengawas", "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when the operator is unknown", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetOperator("unknown").
			Return(storage.Operator{}, errors.ErrInvalidCredentials).
			Times(1)

		_, err := svc.Login("unknown", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
