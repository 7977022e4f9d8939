package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/libresync/libresync/internal/linkup"
	"github.com/libresync/libresync/internal/metrics"
	"github.com/libresync/libresync/internal/models"
)

// LoginClient performs the credential login call against the cloud.
type LoginClient interface {
	Login(ctx context.Context, email, password string) (*models.LoginResult, error)
}

// AuthService implements login and logout, keeping the credential store
// in step with the cloud session.
type AuthService struct {
	client LoginClient
	creds  CredentialStore
	rec    metrics.Recorder
	log    *zap.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(client LoginClient, creds CredentialStore, rec metrics.Recorder, log *zap.Logger) *AuthService {
	return &AuthService{client: client, creds: creds, rec: rec, log: log}
}

// Login authenticates with the given credentials and persists the issued
// ticket and identity. A rejected login surfaces as *linkup.AuthError
// with the server's message when one was sent.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	result, err := s.client.Login(ctx, email, password)
	if err != nil {
		outcome := "error"
		var authErr *linkup.AuthError
		if errors.As(err, &authErr) {
			outcome = "rejected"
		}
		s.rec.RecordLogin(outcome)
		return nil, err
	}

	if err := s.creds.SaveTicket(ctx, result.Data.AuthTicket); err != nil {
		s.rec.RecordLogin("error")
		return nil, fmt.Errorf("persist ticket: %w", err)
	}
	if err := s.creds.SaveUser(ctx, result.Data.User); err != nil {
		s.rec.RecordLogin("error")
		return nil, fmt.Errorf("persist user: %w", err)
	}

	s.rec.RecordLogin("success")
	s.log.Info("logged in", zap.String("user_id", result.Data.User.ID))
	return result.Data.User, nil
}

// Logout clears the stored ticket and identity. It does not call the
// cloud; the ticket simply ages out server side.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.creds.SaveTicket(ctx, nil); err != nil {
		return fmt.Errorf("clear ticket: %w", err)
	}
	if err := s.creds.SaveUser(ctx, nil); err != nil {
		return fmt.Errorf("clear user: %w", err)
	}
	s.log.Info("logged out")
	return nil
}
