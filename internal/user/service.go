package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/config"
)

// Service 用户注册与登录。
type Service struct {
	repo    *Repo
	authCfg config.AuthConfig
}

func NewService(repo *Repo, authCfg config.AuthConfig) *Service {
	return &Service{repo: repo, authCfg: authCfg}
}

func (s *Service) Repo() *Repo {
	return s.repo
}

// RegisterInput 注册入参
type RegisterInput struct {
	Username    string
	Password    string
	DisplayName string
	Department  string
	Phone       string
	Email       string
}

// Register 注册普通用户。管理员账号由 EnsureAdmin 或既有管理员提升。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperr.Validationf("username required")
	}
	if len(in.Password) < 6 {
		return nil, apperr.Validationf("password must be at least 6 characters")
	}

	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, apperr.Conflictf("username %s already taken", username)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	salt, err := GenerateSaltHex()
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password, salt)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		PasswordSalt: salt,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Department:   strings.TrimSpace(in.Department),
		Phone:        strings.TrimSpace(in.Phone),
		Email:        strings.TrimSpace(in.Email),
		Roles:        auth.RoleUser,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LoginResult 登录结果
type LoginResult struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// Login 校验口令并签发访问令牌。
// 用户名不存在与口令错误返回同一错误，不泄露账号是否存在。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validationf("username and password required")
	}

	u, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Forbiddenf("invalid username or password")
	}
	if err != nil {
		return nil, err
	}
	if u.Disabled {
		return nil, apperr.Forbiddenf("account is disabled")
	}
	if !VerifyPassword(password, u.PasswordSalt, u.PasswordHash) {
		return nil, apperr.Forbiddenf("invalid username or password")
	}

	ttl := time.Duration(s.authCfg.TokenTTLHour) * time.Hour
	token, expiresAt, err := auth.GenerateAccessToken(s.authCfg, u.ID, u.RolesSlice(), ttl)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

// Get 查询用户档案；普通用户只能看自己。
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*User, error) {
	if id != actor.ID && !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("user %s is not visible to actor %s", id, actor.ID)
	}
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// List 用户列表（仅管理员）。
func (s *Service) List(ctx context.Context, actor auth.Actor, offset, limit int) ([]User, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperr.Forbiddenf("only administrators may list users")
	}
	return s.repo.List(ctx, offset, limit)
}

// SetRoles 调整用户角色（仅管理员）。
func (s *Service) SetRoles(ctx context.Context, actor auth.Actor, id string, roles []string) (*User, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("only administrators may change roles")
	}
	for _, r := range roles {
		if r != auth.RoleUser && r != auth.RoleAdmin {
			return nil, apperr.Validationf("unknown role %q", r)
		}
	}
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	u.Roles = RolesJoin(roles)
	if err := s.repo.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// EnsureAdmin 启动时保证存在一个管理员账号（幂等）。
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	salt, err := GenerateSaltHex()
	if err != nil {
		return err
	}
	hash, err := HashPassword(password, salt)
	if err != nil {
		return err
	}
	return s.repo.Create(ctx, &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		PasswordSalt: salt,
		DisplayName:  "Administrator",
		Roles:        RolesJoin([]string{auth.RoleUser, auth.RoleAdmin}),
	})
}
