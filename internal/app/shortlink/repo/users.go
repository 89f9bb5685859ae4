package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/app/shortlink/account"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	db *pgxpool.Pool
}

func NewUsersRepo(db *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{db: db}
}

func (u *UsersRepo) FindByUsername(ctx context.Context, username string) (account.User, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := u.db.QueryRow(dbctx, "SELECT id, username, password_hash, role, created_at FROM users WHERE username=$1 LIMIT 1", username)
	var user account.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.User{}, account.ErrUserNotFound
		}
		slog.Error("find user failed", "username", username, "err", err)
		return account.User{}, shortlink.StorageError(err)
	}
	return user, nil
}

func (u *UsersRepo) Insert(ctx context.Context, username, passwordHash, role string) (account.User, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	user := account.User{Username: username, PasswordHash: passwordHash, Role: role}
	err := u.db.
		QueryRow(dbctx, "INSERT INTO users (username, password_hash, role) VALUES ($1,$2,$3) ON CONFLICT (username) DO NOTHING RETURNING id, created_at", username, passwordHash, role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.User{}, account.ErrUserAlreadyExists
		}
		slog.Error("insert user failed", "username", username, "err", err)
		return account.User{}, shortlink.StorageError(err)
	}
	return user, nil
}

func (u *UsersRepo) SetRole(ctx context.Context, username, role string) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := u.db.Exec(dbctx, "UPDATE users SET role=$2 WHERE username=$1", username, role)
	if err != nil {
		return shortlink.StorageError(err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

var _ account.Store = (*UsersRepo)(nil)
