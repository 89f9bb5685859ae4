// Package account 管理发短链的用户：注册、登录校验、角色变更。
//
// 密码只存 bcrypt 哈希；角色决定新建短链是否为 premium。
package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"linkpulse.local/internal/platform/auth"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("username is not allowed")
	ErrInvalidPassword    = errors.New("password is not allowed")
	ErrInvalidRole        = errors.New("unknown role")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store 由 repo.UsersRepo（postgres）和 memstore.Users 实现。
type Store interface {
	// Insert 用户名已存在时返回 ErrUserAlreadyExists。
	Insert(ctx context.Context, username, passwordHash, role string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	SetRole(ctx context.Context, username, role string) error
}

type Service struct {
	store Store
	cost  int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(store Store) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// WithCost 调整 bcrypt cost；测试里用 bcrypt.MinCost 加速。
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) Register(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return User{}, ErrInvalidUsername
	}
	// bcrypt 只看前 72 字节
	if len(password) < 8 || len(password) > 72 {
		return User{}, ErrInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}
	return s.store.Insert(ctx, username, string(hash), auth.RoleUser)
}

// Authenticate 用户不存在与密码错误返回同一个 ErrInvalidCredentials。
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := s.store.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// 用户不存在也跑一次 bcrypt，两种失败耗时一致
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// dummy 按当前 cost 生成一次占位哈希。
func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("linkpulse-placeholder"), s.cost)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *Service) SetRole(ctx context.Context, username, role string) error {
	switch role {
	case auth.RoleUser, auth.RolePremium, auth.RoleAdmin:
	default:
		return ErrInvalidRole
	}
	return s.store.SetRole(ctx, strings.TrimSpace(username), role)
}
