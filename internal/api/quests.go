package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/d60-Lab/sidequest-sync/internal/model"
)

// ListQuests 公共榜单，可按时间窗口过滤
func (c *Client) ListQuests(ctx context.Context, period model.Period) ([]model.Quest, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", string(period))
	}
	var out []model.Quest
	if err := c.getJSON(ctx, "quests.list", "/quests", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListQuestsWithVotes 登录态榜单，带 my_vote，用于给投票账本喂初始状态
func (c *Client) ListQuestsWithVotes(ctx context.Context) ([]model.Quest, error) {
	var out []model.Quest
	if err := c.getJSON(ctx, "quests.list_with_votes", "/quests/with_votes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateQuest(ctx context.Context, title, icon string) (*model.Quest, error) {
	in := struct {
		Title string `json:"title"`
		Icon  string `json:"icon"`
	}{title, icon}
	var out model.Quest
	if err := c.postJSON(ctx, "quests.create", "/quests", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VoteQuest 对任务应用投票增量，返回服务端更新后的聚合值
func (c *Client) VoteQuest(ctx context.Context, questID string, delta int) (*model.Quest, error) {
	q := url.Values{"delta": {strconv.Itoa(delta)}}
	var out model.Quest
	if err := c.postQuery(ctx, "quests.vote", "/quests/"+questID+"/vote", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuestDifficulty 聚合完成率（0-100），公共接口
func (c *Client) QuestDifficulty(ctx context.Context, questID string) (float64, error) {
	var out struct {
		CompletionRate float64 `json:"completion_rate"`
	}
	if err := c.getJSON(ctx, "quests.difficulty", "/quests/"+questID+"/difficulty", nil, &out); err != nil {
		return 0, err
	}
	return out.CompletionRate, nil
}

// QuestReceivedAt 当前用户收到某任务的时间；老数据没有时间戳时服务端兜底
func (c *Client) QuestReceivedAt(ctx context.Context, questID string) (model.Timestamp, error) {
	var out struct {
		ReceivedAt model.Timestamp `json:"received_at"`
	}
	if err := c.getJSON(ctx, "quests.received_at", "/quests/"+questID+"/received-at", nil, &out); err != nil {
		return model.Timestamp{}, err
	}
	return out.ReceivedAt, nil
}

func (c *Client) ReceivedQuests(ctx context.Context) ([]model.ReceivedQuest, error) {
	var out []model.ReceivedQuest
	if err := c.getJSON(ctx, "quests.received", "/quests/received", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteResult 完成接口的响应：徽章素材 + 接收时间（用于耗时结算）
type CompleteResult struct {
	QuestID    string          `json:"quest_id"`
	Title      string          `json:"title"`
	Icon       string          `json:"icon"`
	ReceivedAt model.Timestamp `json:"received_at"`
}

func (c *Client) CompleteQuest(ctx context.Context, questID string) (*CompleteResult, error) {
	var out CompleteResult
	if err := c.postQuery(ctx, "quests.complete", "/quests/"+questID+"/complete", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompletedQuests(ctx context.Context) ([]model.CompletedQuest, error) {
	var out []model.CompletedQuest
	if err := c.getJSON(ctx, "quests.completed", "/quests/completed", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompletedQuestsByUser 查看好友主页徽章墙
func (c *Client) CompletedQuestsByUser(ctx context.Context, userID string) ([]model.CompletedQuest, error) {
	var out []model.CompletedQuest
	if err := c.getJSON(ctx, "quests.completed_by_user", "/quests/completed/by-user/"+userID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ShareQuest 把任务下战书给好友；送出后不可撤回
func (c *Client) ShareQuest(ctx context.Context, questID, toUserID string) error {
	in := struct {
		QuestID  string `json:"quest_id"`
		ToUserID string `json:"to_user_id"`
	}{questID, toUserID}
	return c.postJSON(ctx, "share.quest", "/share", in, nil)
}
