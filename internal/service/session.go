package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/sidequest-sync/internal/api"
	"github.com/d60-Lab/sidequest-sync/internal/model"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username taken")
)

// AuthAPI 登录/注册接口，由 *api.Client 实现
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*api.AuthResult, error)
	Signup(ctx context.Context, username, password string) (*api.AuthResult, error)
}

// Session 持有当前会话的用户身份与 bearer 凭证，
// 实现 api.TokenSource，供各 manager 在构造期注入。
// token 的持久化由调用方负责，这里只管生命周期内的状态。
type Session struct {
	mu        sync.RWMutex
	token     string
	user      model.User
	expiresAt time.Time
}

func NewSession() *Session { return &Session{} }

// Token 未登录时返回空串，api 层据此省略 Authorization 头
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Login(ctx context.Context, auth AuthAPI, username, password string) error {
	res, err := auth.Login(ctx, username, password)
	if err != nil {
		return mapAuthError(err)
	}
	return s.adopt(res)
}

func (s *Session) Signup(ctx context.Context, auth AuthAPI, username, password string) error {
	res, err := auth.Signup(ctx, username, password)
	if err != nil {
		return mapAuthError(err)
	}
	return s.adopt(res)
}

// Resume 用外部存储里的旧凭证恢复会话（比如上次持久化的 token）
func (s *Session) Resume(token string, user model.User) error {
	return s.adopt(&api.AuthResult{Token: token, User: user})
}

func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = model.User{}
	s.expiresAt = time.Time{}
}

// Valid 已登录且凭证未过期
func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || time.Now().Before(s.expiresAt)
}

func (s *Session) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.token != ""
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.ID
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) adopt(res *api.AuthResult) error {
	if res.Token == "" {
		return ErrInvalidCredentials
	}

	// 客户端没有签名密钥，只做不验签的 claims 解读（sub / exp），
	// 凭证真伪由服务端在每次请求时裁决。
	user := res.User
	var expiresAt time.Time
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(res.Token, &claims); err == nil {
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
		if user.ID == "" {
			user.ID = claims.Subject
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = res.Token
	s.user = user
	s.expiresAt = expiresAt
	return nil
}

// mapAuthError 把后端的认证失败翻译成调用方可判等的 sentinel，
// 上层直接提示用户、不做重试。其余错误原样透传。
func mapAuthError(err error) error {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Status == 401:
		return ErrInvalidCredentials
	case apiErr.Status == 400 && apiErr.Detail == "USERNAME_TAKEN":
		return ErrUsernameTaken
	}
	return err
}
