package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/d60-Lab/sidequest-sync/internal/model"
)

func (c *Client) SendFriendRequest(ctx context.Context, username string) error {
	q := url.Values{"username": {username}}
	return c.postQuery(ctx, "friends.request", "/friends/request", q, nil)
}

func (c *Client) IncomingRequests(ctx context.Context) ([]model.FriendRequest, error) {
	var out []model.FriendRequest
	if err := c.getJSON(ctx, "friends.incoming", "/friends/incoming", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RespondFriendRequest(ctx context.Context, requestID string, accept bool) error {
	q := url.Values{"accept": {strconv.FormatBool(accept)}}
	return c.postQuery(ctx, "friends.respond", "/friends/"+requestID+"/respond", q, nil)
}

func (c *Client) ListFriends(ctx context.Context) ([]model.Friend, error) {
	var out []model.Friend
	if err := c.getJSON(ctx, "friends.list", "/friends/list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RemoveFriend(ctx context.Context, friendID string) error {
	return c.postQuery(ctx, "friends.remove", "/friends/"+friendID+"/remove", nil, nil)
}
