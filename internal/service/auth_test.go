package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/libresync/libresync/internal/linkup"
	"github.com/libresync/libresync/internal/models"
	"github.com/libresync/libresync/internal/service"
	"go.uber.org/zap"
)

type mockLoginClient struct {
	LoginFunc func(ctx context.Context, email, password string) (*models.LoginResult, error)
}

func (m *mockLoginClient) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	return m.LoginFunc(ctx, email, password)
}

func TestLogin_Success(t *testing.T) {
	wantUser := &models.User{ID: "user-1", Email: "pat@example.com", FirstName: "Pat"}
	wantTicket := &models.AuthTicket{Token: "tok-1", Expires: 1716000000, Duration: 15552000000}

	client := &mockLoginClient{
		LoginFunc: func(_ context.Context, email, password string) (*models.LoginResult, error) {
			if email != "pat@example.com" || password != "hunter2" {
				t.Errorf("Login received %q/%q; want pat@example.com/hunter2", email, password)
			}
			return &models.LoginResult{
				Data: &models.LoginData{User: wantUser, AuthTicket: wantTicket},
			}, nil
		},
	}

	var savedTicket *models.AuthTicket
	var savedUser *models.User
	creds := &mockCreds{
		SaveTicketFunc: func(_ context.Context, ticket *models.AuthTicket) error {
			savedTicket = ticket
			return nil
		},
		SaveUserFunc: func(_ context.Context, user *models.User) error {
			savedUser = user
			return nil
		},
	}
	rec := &mockRecorder{}

	svc := service.NewAuthService(client, creds, rec, zap.NewNop())
	got, err := svc.Login(context.Background(), "pat@example.com", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != wantUser {
		t.Errorf("Login returned %+v; want %+v", got, wantUser)
	}
	if savedTicket != wantTicket {
		t.Errorf("saved ticket = %+v; want %+v", savedTicket, wantTicket)
	}
	if savedUser != wantUser {
		t.Errorf("saved user = %+v; want %+v", savedUser, wantUser)
	}
	if len(rec.logins) != 1 || rec.logins[0] != "success" {
		t.Errorf("login outcomes = %v; want [success]", rec.logins)
	}
}

func TestLogin_Rejected(t *testing.T) {
	wantErr := &linkup.AuthError{Op: "login", Status: 2, Message: "bad credentials"}
	client := &mockLoginClient{
		LoginFunc: func(context.Context, string, string) (*models.LoginResult, error) {
			return nil, wantErr
		},
	}
	creds := &mockCreds{
		SaveTicketFunc: func(context.Context, *models.AuthTicket) error {
			t.Fatal("SaveTicket called for a rejected login")
			return nil
		},
		SaveUserFunc: func(context.Context, *models.User) error {
			t.Fatal("SaveUser called for a rejected login")
			return nil
		},
	}
	rec := &mockRecorder{}

	svc := service.NewAuthService(client, creds, rec, zap.NewNop())
	_, err := svc.Login(context.Background(), "pat@example.com", "wrong")

	var authErr *linkup.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Login error = %v; want *linkup.AuthError", err)
	}
	if authErr.Message != "bad credentials" {
		t.Errorf("AuthError message = %q; want bad credentials", authErr.Message)
	}
	if len(rec.logins) != 1 || rec.logins[0] != "rejected" {
		t.Errorf("login outcomes = %v; want [rejected]", rec.logins)
	}
}

func TestLogin_TransportError(t *testing.T) {
	client := &mockLoginClient{
		LoginFunc: func(context.Context, string, string) (*models.LoginResult, error) {
			return nil, &linkup.TransportError{Op: "login", Err: errors.New("connection refused")}
		},
	}
	rec := &mockRecorder{}

	svc := service.NewAuthService(client, &mockCreds{}, rec, zap.NewNop())
	if _, err := svc.Login(context.Background(), "pat@example.com", "hunter2"); err == nil {
		t.Fatal("expected an error")
	}
	if len(rec.logins) != 1 || rec.logins[0] != "error" {
		t.Errorf("login outcomes = %v; want [error]", rec.logins)
	}
}

func TestLogin_PersistError(t *testing.T) {
	wantErr := errors.New("store unavailable")
	client := &mockLoginClient{
		LoginFunc: func(context.Context, string, string) (*models.LoginResult, error) {
			return &models.LoginResult{
				Data: &models.LoginData{
					User:       &models.User{ID: "user-1"},
					AuthTicket: &models.AuthTicket{Token: "tok-1"},
				},
			}, nil
		},
	}
	creds := &mockCreds{
		SaveTicketFunc: func(context.Context, *models.AuthTicket) error {
			return wantErr
		},
	}
	rec := &mockRecorder{}

	svc := service.NewAuthService(client, creds, rec, zap.NewNop())
	_, err := svc.Login(context.Background(), "pat@example.com", "hunter2")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Login error = %v; want wrapped %v", err, wantErr)
	}
	if len(rec.logins) != 1 || rec.logins[0] != "error" {
		t.Errorf("login outcomes = %v; want [error]", rec.logins)
	}
}

func TestLogout(t *testing.T) {
	var clearedTicket, clearedUser bool
	creds := &mockCreds{
		SaveTicketFunc: func(_ context.Context, ticket *models.AuthTicket) error {
			if ticket != nil {
				t.Errorf("Logout saved ticket %+v; want nil", ticket)
			}
			clearedTicket = true
			return nil
		},
		SaveUserFunc: func(_ context.Context, user *models.User) error {
			if user != nil {
				t.Errorf("Logout saved user %+v; want nil", user)
			}
			clearedUser = true
			return nil
		},
	}

	svc := service.NewAuthService(&mockLoginClient{}, creds, &mockRecorder{}, zap.NewNop())
	if err := svc.Logout(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !clearedTicket || !clearedUser {
		t.Errorf("cleared ticket=%v user=%v; want both", clearedTicket, clearedUser)
	}
}

func TestLogout_Error(t *testing.T) {
	wantErr := errors.New("store unavailable")
	creds := &mockCreds{
		SaveTicketFunc: func(context.Context, *models.AuthTicket) error {
			return wantErr
		},
	}

	svc := service.NewAuthService(&mockLoginClient{}, creds, &mockRecorder{}, zap.NewNop())
	if err := svc.Logout(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("Logout error = %v; want wrapped %v", err, wantErr)
	}
}
