package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/d60-Lab/sidequest-sync/internal/model"
)

func (c *Client) ListPosts(ctx context.Context) ([]model.Post, error) {
	var out []model.Post
	if err := c.getJSON(ctx, "posts.list", "/posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadPost 以 multipart 上传打卡媒体并关联任务
func (c *Client) UploadPost(ctx context.Context, questID, filename string, media io.Reader) (*model.Post, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("quest_id", questID); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, media); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out model.Post
	if err := c.do(ctx, "posts.upload", http.MethodPost, "/posts/upload", nil, &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VotePost(ctx context.Context, postID string, delta int) (*model.Post, error) {
	q := url.Values{"delta": {strconv.Itoa(delta)}}
	var out model.Post
	if err := c.postQuery(ctx, "posts.vote", "/posts/"+postID+"/vote", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, "posts.delete", http.MethodDelete, "/posts/"+postID, nil, nil, "", nil)
}

func (c *Client) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	var out []model.Comment
	if err := c.getJSON(ctx, "posts.comments", "/posts/"+postID+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, content string) (*model.Comment, error) {
	in := struct {
		Content string `json:"content"`
	}{content}
	var out model.Comment
	if err := c.postJSON(ctx, "posts.create_comment", "/posts/"+postID+"/comments", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
