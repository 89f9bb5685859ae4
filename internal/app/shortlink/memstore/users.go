package memstore

import (
	"context"
	"sync"
	"time"

	"linkpulse.local/internal/app/shortlink/account"
)

// Users 是 account.Store 的进程内实现。
type Users struct {
	mu     sync.Mutex
	byName map[string]account.User
	nextID int64
}

func NewUsers() *Users {
	return &Users{byName: make(map[string]account.User)}
}

func (u *Users) Insert(ctx context.Context, username, passwordHash, role string) (account.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.byName[username]; ok {
		return account.User{}, account.ErrUserAlreadyExists
	}
	u.nextID++
	user := account.User{
		ID:           u.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	u.byName[username] = user
	return user, nil
}

func (u *Users) FindByUsername(ctx context.Context, username string) (account.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.byName[username]
	if !ok {
		return account.User{}, account.ErrUserNotFound
	}
	return user, nil
}

func (u *Users) SetRole(ctx context.Context, username, role string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.byName[username]
	if !ok {
		return account.ErrUserNotFound
	}
	user.Role = role
	u.byName[username] = user
	return nil
}

var _ account.Store = (*Users)(nil)
