package account_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"linkpulse.local/internal/app/shortlink/account"
	"linkpulse.local/internal/app/shortlink/memstore"
	"linkpulse.local/internal/platform/auth"

	"golang.org/x/crypto/bcrypt"
)

func newService() *account.Service {
	return account.NewService(memstore.NewUsers()).WithCost(bcrypt.MinCost)
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "ok", username: "alice", password: "password123"},
		{name: "trimmed", username: "  bob  ", password: "password123"},
		{name: "short name", username: "al", password: "password123", wantErr: account.ErrInvalidUsername},
		{name: "long name", username: strings.Repeat("a", 33), password: "password123", wantErr: account.ErrInvalidUsername},
		{name: "short password", username: "carol", password: "short", wantErr: account.ErrInvalidPassword},
		{name: "long password", username: "dave", password: strings.Repeat("p", 73), wantErr: account.ErrInvalidPassword},
	}

	svc := newService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Register(context.Background(), tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if user.ID == 0 || user.Username != strings.TrimSpace(tt.username) {
				t.Fatalf("user: %+v", user)
			}
			if user.Role != auth.RoleUser {
				t.Fatalf("role: got %q", user.Role)
			}
			if user.PasswordHash == tt.password {
				t.Fatal("password stored in clear text")
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "another-pass"); !errors.Is(err, account.ErrUserAlreadyExists) {
		t.Fatalf("duplicate: got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "ok", username: "alice", password: "password123"},
		{name: "wrong password", username: "alice", password: "password124", wantErr: account.ErrInvalidCredentials},
		// 不存在的用户和密码错误不可区分
		{name: "unknown user", username: "mallory", password: "password123", wantErr: account.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Authenticate(ctx, tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && user.Username != "alice" {
				t.Fatalf("user: %+v", user)
			}
		})
	}
}

func TestSetRole(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.SetRole(ctx, "alice", "superuser"); !errors.Is(err, account.ErrInvalidRole) {
		t.Fatalf("invalid role: got %v", err)
	}
	if err := svc.SetRole(ctx, "nobody", auth.RolePremium); !errors.Is(err, account.ErrUserNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}
	if err := svc.SetRole(ctx, "alice", auth.RolePremium); err != nil {
		t.Fatalf("set role: %v", err)
	}
	user, err := svc.Authenticate(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Role != auth.RolePremium {
		t.Fatalf("role: got %q", user.Role)
	}
}
