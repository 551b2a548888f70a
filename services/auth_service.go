package services

import (
	"fmt"
	"log/slog"
	"proctor/auth"
	"proctor/errors"
	"proctor/infrastructure/storage"
)

type IAuthService interface {
	Login(username, password string) (Token, error)
	EnsureOperator(username, password string) error
}

type AuthService struct {
	operators storage.IOperatorRepository
	tokens    *auth.Tokens
	log       *slog.Logger
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(operators storage.IOperatorRepository, tokens *auth.Tokens, log *slog.Logger) *AuthService {
	return &AuthService{operators: operators, tokens: tokens, log: log}
}

// EnsureOperator seeds the configured operator account. An existing account
// is kept as is.
func (s *AuthService) EnsureOperator(username, password string) error {
	// 1. Validate before any expensive cryptographic operation
	if err := auth.ValidateOperator(auth.OperatorRequest{Username: username, Password: password}); err != nil {
		return err
	}

	// 2. Hash in the service layer, the repository never sees plain passwords
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	_, err = s.operators.CreateOperator(username, hashed)
	if errors.Is(err, errors.ErrOperatorExists) {
		s.log.Debug("Operator already provisioned", "username", username)
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("Operator provisioned", "username", username)
	return nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Username: username, Password: password}); err != nil {
		return "", err
	}

	// 1. Generic error on unknown user to prevent enumeration
	op, err := s.operators.GetOperator(username)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}

	// 2. Compare against the stored hash
	match, err := auth.ComparePassword(password, op.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	// 3. Issue the JWT
	token, err := s.tokens.Generate(op.ID, op.Username, op.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	s.log.Info("Operator logged in", "username", username)
	return Token(token), nil
}
