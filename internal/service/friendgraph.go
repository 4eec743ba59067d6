package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/sidequest-sync/internal/api"
	"github.com/d60-Lab/sidequest-sync/internal/model"
	"github.com/d60-Lab/sidequest-sync/pkg/logger"
)

var (
	ErrEmptyUsername   = errors.New("username must not be empty")
	ErrUnknownRequest  = errors.New("friend request not in incoming queue")
	ErrNotFriend       = errors.New("no friend edge for that user")
	ErrRequestNotFound = errors.New("target user not found")
)

// FriendAPI 好友子系统依赖的远端操作，由 *api.Client 实现
type FriendAPI interface {
	SendFriendRequest(ctx context.Context, username string) error
	IncomingRequests(ctx context.Context) ([]model.FriendRequest, error)
	RespondFriendRequest(ctx context.Context, requestID string, accept bool) error
	ListFriends(ctx context.Context) ([]model.Friend, error)
	RemoveFriend(ctx context.Context, friendID string) error
}

// FriendGraph 维护定向好友请求的生命周期和由此产生的对称好友关系。
// pending → accepted 生成好友边；pending → rejected 只出队，不留痕。
type FriendGraph struct {
	mu  sync.Mutex
	api FriendAPI

	friends  map[string]model.Friend        // by user id
	incoming map[string]model.FriendRequest // by request id
	// 已发出还没被对方处理的请求目标，防止本地重复发送
	outstanding map[string]struct{} // by username
}

func NewFriendGraph(friendAPI FriendAPI) *FriendGraph {
	return &FriendGraph{
		api:         friendAPI,
		friends:     make(map[string]model.Friend),
		incoming:    make(map[string]model.FriendRequest),
		outstanding: make(map[string]struct{}),
	}
}

// SendRequest 向目标用户发起好友请求。重复发送从调用方视角幂等：
// 本地 outstanding 集先挡一道，服务端的去重 400 也折叠成成功。
func (g *FriendGraph) SendRequest(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}

	g.mu.Lock()
	if _, dup := g.outstanding[username]; dup {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	if err := g.api.SendFriendRequest(ctx, username); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.Status == 404:
				return fmt.Errorf("request %s: %w", username, ErrRequestNotFound)
			case apiErr.Status == 400:
				// 服务端已有同目标的 pending 请求，视为本次发送成功
				break
			default:
				return fmt.Errorf("request %s: %w", username, err)
			}
		} else {
			return fmt.Errorf("request %s: %w", username, err)
		}
	}

	g.mu.Lock()
	g.outstanding[username] = struct{}{}
	g.mu.Unlock()
	return nil
}

// RefreshIncoming 重载待处理请求队列
func (g *FriendGraph) RefreshIncoming(ctx context.Context) error {
	reqs, err := g.api.IncomingRequests(ctx)
	if err != nil {
		return fmt.Errorf("refresh incoming requests: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.incoming = make(map[string]model.FriendRequest, len(reqs))
	for _, r := range reqs {
		g.incoming[r.ID] = r
	}
	return nil
}

// RefreshFriends 重载好友列表
func (g *FriendGraph) RefreshFriends(ctx context.Context) error {
	friends, err := g.api.ListFriends(ctx)
	if err != nil {
		return fmt.Errorf("refresh friends: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.friends = make(map[string]model.Friend, len(friends))
	for _, f := range friends {
		g.friends[f.ID] = f
		// 请求已落成边，去重痕迹可以清掉；之后拆边再发是合法的新请求
		delete(g.outstanding, f.Username)
	}
	return nil
}

// ForgetRequest 撤掉对某目标的本地去重痕迹，允许重新发起
// （对方拒绝对发送方不可见，由上层在合适的时机调用）
func (g *FriendGraph) ForgetRequest(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.outstanding, strings.TrimSpace(username))
}

// Respond 处理一条待定请求：接受时建立对称好友边并出队，
// 拒绝时只出队。请求不在本地队列里视为调用方错误。
func (g *FriendGraph) Respond(ctx context.Context, requestID string, accept bool) error {
	g.mu.Lock()
	req, ok := g.incoming[requestID]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("respond %s: %w", requestID, ErrUnknownRequest)
	}

	if err := g.api.RespondFriendRequest(ctx, requestID, accept); err != nil {
		return fmt.Errorf("respond %s: %w", requestID, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.incoming, requestID)
	if accept {
		g.friends[req.FromUserID] = model.Friend{
			ID:       req.FromUserID,
			Username: req.FromUsername,
		}
	}
	logger.Info("friend request handled",
		zap.String("request", requestID), zap.Bool("accept", accept))
	return nil
}

// RemoveFriend 拆除对称好友边。本侧列表乐观立即移除，对端视图靠
// 它下次拉取对齐；服务端失败则把本地条目放回并报错。
func (g *FriendGraph) RemoveFriend(ctx context.Context, friendID string) error {
	g.mu.Lock()
	f, ok := g.friends[friendID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("remove %s: %w", friendID, ErrNotFriend)
	}
	delete(g.friends, friendID)
	g.mu.Unlock()

	if err := g.api.RemoveFriend(ctx, friendID); err != nil {
		g.mu.Lock()
		g.friends[friendID] = f
		g.mu.Unlock()
		logger.Warn("remove friend failed, restored",
			zap.String("friend", friendID), zap.Error(err))
		return fmt.Errorf("remove %s: %w", friendID, err)
	}

	g.mu.Lock()
	delete(g.outstanding, f.Username)
	g.mu.Unlock()
	return nil
}

// Friends 好友列表快照，按用户名稳定排序供单次渲染
func (g *FriendGraph) Friends() []model.Friend {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Friend, 0, len(g.friends))
	for _, f := range g.friends {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Incoming 待处理请求快照
func (g *FriendGraph) Incoming() []model.FriendRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.FriendRequest, 0, len(g.incoming))
	for _, r := range g.incoming {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsFriend 当前本地视图里是否存在与该用户的好友边
func (g *FriendGraph) IsFriend(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.friends[userID]
	return ok
}
