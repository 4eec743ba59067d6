package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/d60-Lab/sidequest-sync/internal/model"
)

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.getJSON(ctx, "users.me", "/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	var out model.User
	if err := c.getJSON(ctx, "users.by_username", "/users/by-username/"+username, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPfp 上传新头像，返回签名后的访问 URL
func (c *Client) UploadPfp(ctx context.Context, filename string, media io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, media); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		PfpURL string `json:"pfp_url"`
	}
	if err := c.do(ctx, "users.upload_pfp", http.MethodPost, "/users/me/pfp", nil, &buf, mw.FormDataContentType(), &out); err != nil {
		return "", err
	}
	return out.PfpURL, nil
}

// ConstellationLayout 用户徽章星座的自由布局，内容对客户端是黑盒 JSON
func (c *Client) ConstellationLayout(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.getJSON(ctx, "constellation.get", "/constellation", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SaveConstellationLayout(ctx context.Context, layout json.RawMessage) error {
	return c.postJSON(ctx, "constellation.save", "/constellation", layout, nil)
}
