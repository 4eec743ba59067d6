package api

import (
	"context"

	"github.com/d60-Lab/sidequest-sync/internal/model"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult 登录/注册成功后的凭证与用户信息
type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var out AuthResult
	if err := c.postJSON(ctx, "auth.login", "/auth/login", credentials{username, password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, username, password string) (*AuthResult, error) {
	var out AuthResult
	if err := c.postJSON(ctx, "auth.signup", "/auth/signup", credentials{username, password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
