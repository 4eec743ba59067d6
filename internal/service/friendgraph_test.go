package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/sidequest-sync/internal/api"
	"github.com/d60-Lab/sidequest-sync/internal/model"
)

type fakeFriendAPI struct {
	sendErr    error
	sendCalls  int
	incoming   []model.FriendRequest
	friends    []model.Friend
	respondErr error
	responded  map[string]bool // request id → accept
	removeErr  error
	removed    []string
}

func (f *fakeFriendAPI) SendFriendRequest(_ context.Context, username string) error {
	f.sendCalls++
	return f.sendErr
}

func (f *fakeFriendAPI) IncomingRequests(context.Context) ([]model.FriendRequest, error) {
	return f.incoming, nil
}

func (f *fakeFriendAPI) RespondFriendRequest(_ context.Context, requestID string, accept bool) error {
	if f.respondErr != nil {
		return f.respondErr
	}
	if f.responded == nil {
		f.responded = make(map[string]bool)
	}
	f.responded[requestID] = accept
	return nil
}

func (f *fakeFriendAPI) ListFriends(context.Context) ([]model.Friend, error) {
	return f.friends, nil
}

func (f *fakeFriendAPI) RemoveFriend(_ context.Context, friendID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, friendID)
	return nil
}

func TestSendRequestIsIdempotentLocally(t *testing.T) {
	fake := &fakeFriendAPI{}
	g := NewFriendGraph(fake)

	require.NoError(t, g.SendRequest(context.Background(), "bob"))
	require.NoError(t, g.SendRequest(context.Background(), " bob "))
	assert.Equal(t, 1, fake.sendCalls)
}

func TestSendRequestFoldsServerDuplicateIntoSuccess(t *testing.T) {
	fake := &fakeFriendAPI{sendErr: &api.Error{Status: 400, Detail: "Request already sent"}}
	g := NewFriendGraph(fake)

	require.NoError(t, g.SendRequest(context.Background(), "bob"))
	// 之后的重发连网络都不走了
	require.NoError(t, g.SendRequest(context.Background(), "bob"))
	assert.Equal(t, 1, fake.sendCalls)
}

func TestSendRequestUnknownTarget(t *testing.T) {
	fake := &fakeFriendAPI{sendErr: &api.Error{Status: 404, Detail: "User not found"}}
	g := NewFriendGraph(fake)

	err := g.SendRequest(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	// 失败的目标不进 outstanding，可以重试
	err = g.SendRequest(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assert.Equal(t, 2, fake.sendCalls)
}

func TestResendLegitimateAfterEdgeRemoved(t *testing.T) {
	fake := &fakeFriendAPI{
		friends: []model.Friend{{ID: "u7", Username: "carol"}},
	}
	g := NewFriendGraph(fake)
	ctx := context.Background()

	require.NoError(t, g.SendRequest(ctx, "carol"))
	assert.Equal(t, 1, fake.sendCalls)

	// 对方接受：请求落成边，去重痕迹随之清掉
	require.NoError(t, g.RefreshFriends(ctx))
	require.NoError(t, g.RemoveFriend(ctx, "u7"))

	// 拆边后重新发起是合法的新请求，必须走网络
	require.NoError(t, g.SendRequest(ctx, "carol"))
	assert.Equal(t, 2, fake.sendCalls)
}

func TestForgetRequestAllowsResend(t *testing.T) {
	fake := &fakeFriendAPI{}
	g := NewFriendGraph(fake)
	ctx := context.Background()

	require.NoError(t, g.SendRequest(ctx, "dave"))
	require.NoError(t, g.SendRequest(ctx, "dave"))
	assert.Equal(t, 1, fake.sendCalls)

	g.ForgetRequest(" dave ")

	require.NoError(t, g.SendRequest(ctx, "dave"))
	assert.Equal(t, 2, fake.sendCalls)
}

func TestSendRequestRejectsEmptyUsername(t *testing.T) {
	g := NewFriendGraph(&fakeFriendAPI{})
	assert.ErrorIs(t, g.SendRequest(context.Background(), "   "), ErrEmptyUsername)
}

func TestAcceptCreatesFriendEdge(t *testing.T) {
	fake := &fakeFriendAPI{
		incoming: []model.FriendRequest{{ID: "r1", FromUserID: "u7", FromUsername: "carol"}},
	}
	g := NewFriendGraph(fake)
	require.NoError(t, g.RefreshIncoming(context.Background()))

	require.NoError(t, g.Respond(context.Background(), "r1", true))

	assert.True(t, fake.responded["r1"])
	assert.True(t, g.IsFriend("u7"))
	assert.Empty(t, g.Incoming())
	friends := g.Friends()
	require.Len(t, friends, 1)
	assert.Equal(t, "carol", friends[0].Username)
}

func TestRejectDequeuesWithoutEdge(t *testing.T) {
	fake := &fakeFriendAPI{
		incoming: []model.FriendRequest{{ID: "r1", FromUserID: "u7", FromUsername: "carol"}},
	}
	g := NewFriendGraph(fake)
	require.NoError(t, g.RefreshIncoming(context.Background()))

	require.NoError(t, g.Respond(context.Background(), "r1", false))

	assert.False(t, g.IsFriend("u7"))
	assert.Empty(t, g.Incoming())
	assert.Empty(t, g.Friends())
}

func TestRespondUnknownRequest(t *testing.T) {
	g := NewFriendGraph(&fakeFriendAPI{})
	err := g.Respond(context.Background(), "nope", true)
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestRespondKeepsQueueOnServerFailure(t *testing.T) {
	fake := &fakeFriendAPI{
		incoming:   []model.FriendRequest{{ID: "r1", FromUserID: "u7", FromUsername: "carol"}},
		respondErr: errors.New("boom"),
	}
	g := NewFriendGraph(fake)
	require.NoError(t, g.RefreshIncoming(context.Background()))

	require.Error(t, g.Respond(context.Background(), "r1", true))
	assert.Len(t, g.Incoming(), 1)
	assert.False(t, g.IsFriend("u7"))
}

func TestRemoveFriendOptimistic(t *testing.T) {
	fake := &fakeFriendAPI{
		friends: []model.Friend{{ID: "u7", Username: "carol"}, {ID: "u8", Username: "dave"}},
	}
	g := NewFriendGraph(fake)
	require.NoError(t, g.RefreshFriends(context.Background()))

	require.NoError(t, g.RemoveFriend(context.Background(), "u7"))
	assert.False(t, g.IsFriend("u7"))
	assert.True(t, g.IsFriend("u8"))
	assert.Equal(t, []string{"u7"}, fake.removed)
}

func TestRemoveFriendRestoredOnFailure(t *testing.T) {
	fake := &fakeFriendAPI{
		friends:   []model.Friend{{ID: "u7", Username: "carol"}},
		removeErr: errors.New("boom"),
	}
	g := NewFriendGraph(fake)
	require.NoError(t, g.RefreshFriends(context.Background()))

	require.Error(t, g.RemoveFriend(context.Background(), "u7"))
	assert.True(t, g.IsFriend("u7"))
}

func TestRemoveFriendUnknownEdge(t *testing.T) {
	g := NewFriendGraph(&fakeFriendAPI{})
	err := g.RemoveFriend(context.Background(), "u9")
	assert.ErrorIs(t, err, ErrNotFriend)
}

func TestFriendsSortedByUsername(t *testing.T) {
	fake := &fakeFriendAPI{
		friends: []model.Friend{
			{ID: "u3", Username: "zed"},
			{ID: "u1", Username: "amy"},
			{ID: "u2", Username: "mia"},
		},
	}
	g := NewFriendGraph(fake)
	require.NoError(t, g.RefreshFriends(context.Background()))

	names := make([]string, 0, 3)
	for _, f := range g.Friends() {
		names = append(names, f.Username)
	}
	assert.Equal(t, []string{"amy", "mia", "zed"}, names)
}
