package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/d60-Lab/sidequest-sync/internal/api"
	"github.com/d60-Lab/sidequest-sync/internal/model"
	"github.com/d60-Lab/sidequest-sync/pkg/logger"
)

var (
	ErrNotReceived      = errors.New("quest not in received state")
	ErrAlreadyCompleted = errors.New("quest already completed")
	ErrNothingToPost    = errors.New("no completed quest pending post")
	ErrInvalidQuest     = errors.New("invalid quest input")
)

// 老数据没有 received_at 时按固定一小时结算，和服务端兜底保持一致
const fallbackElapsed = time.Hour

// QuestAPI 生命周期 manager 依赖的远端操作，由 *api.Client 实现
type QuestAPI interface {
	CreateQuest(ctx context.Context, title, icon string) (*model.Quest, error)
	ShareQuest(ctx context.Context, questID, toUserID string) error
	ReceivedQuests(ctx context.Context) ([]model.ReceivedQuest, error)
	QuestReceivedAt(ctx context.Context, questID string) (model.Timestamp, error)
	CompleteQuest(ctx context.Context, questID string) (*api.CompleteResult, error)
	CompletedQuests(ctx context.Context) ([]model.CompletedQuest, error)
	UploadPost(ctx context.Context, questID, filename string, media io.Reader) (*model.Post, error)
}

// RateSource 任务完成率来源；生产路径套 redis 缓存，直连 api 也可
type RateSource interface {
	CompletionRate(ctx context.Context, questID string) (float64, error)
}

// Elapsed 完成耗时，按天/时/分拆解，各分量非负
type Elapsed struct {
	Days    int
	Hours   int
	Minutes int
}

// String 逐段零抑制的人类可读串；全零时保底 "0m"
func (e Elapsed) String() string {
	var parts []string
	if e.Days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", e.Days))
	}
	if e.Hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", e.Hours))
	}
	if e.Minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", e.Minutes))
	}
	if len(parts) == 0 {
		return "0m"
	}
	return strings.Join(parts, " ")
}

// CompletionSummary 完成结算卡所需的全部数据
type CompletionSummary struct {
	QuestID string
	Title   string
	Icon    string
	Elapsed Elapsed
	Tier    model.DifficultyTier
	Label   string
}

type pendingCompletion struct {
	summary CompletionSummary
	posted  bool
}

// QuestLifecycle 驱动任务实例的单向状态流：
// received → completed（发徽章）→ posted（补打卡媒体）。
// 收到的任务不可撤回、不可删除，完成是唯一出口。
type QuestLifecycle struct {
	mu       sync.Mutex
	api      QuestAPI
	rates    RateSource
	validate *validator.Validate
	now      func() time.Time

	received map[string]model.ReceivedQuest  // by quest id
	badges   map[string]model.CompletedQuest // by quest id，(user, quest) 唯一
	pending  *pendingCompletion
}

func NewQuestLifecycle(questAPI QuestAPI, rates RateSource) *QuestLifecycle {
	return &QuestLifecycle{
		api:      questAPI,
		rates:    rates,
		validate: validator.New(),
		now:      time.Now,
		received: make(map[string]model.ReceivedQuest),
		badges:   make(map[string]model.CompletedQuest),
	}
}

// SetClock 测试里固定时间用
func (q *QuestLifecycle) SetClock(now func() time.Time) { q.now = now }

type proposeInput struct {
	Title string `validate:"required,min=1,max=120"`
	Icon  string `validate:"max=16"`
}

// Propose 往全局目录提交一条新任务；只校验标题非空，无归属语义
func (q *QuestLifecycle) Propose(ctx context.Context, title, icon string) (*model.Quest, error) {
	title = strings.TrimSpace(title)
	if err := q.validate.Struct(proposeInput{Title: title, Icon: icon}); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuest, err)
	}
	return q.api.CreateQuest(ctx, title, icon)
}

// Share 把任务下战书给另一个用户。送出即生效，双方都不能撤回，
// 对方只有完成一条路——这是产品语义，不要加取消入口。
func (q *QuestLifecycle) Share(ctx context.Context, questID, toUserID string) error {
	if questID == "" || toUserID == "" {
		return ErrInvalidQuest
	}
	if err := q.api.ShareQuest(ctx, questID, toUserID); err != nil {
		return fmt.Errorf("share quest %s: %w", questID, err)
	}
	logger.Info("quest shared", zap.String("quest", questID), zap.String("to", toUserID))
	return nil
}

// Refresh 从服务端重载接收列表与徽章墙
func (q *QuestLifecycle) Refresh(ctx context.Context) error {
	received, err := q.api.ReceivedQuests(ctx)
	if err != nil {
		return fmt.Errorf("refresh received quests: %w", err)
	}
	badges, err := q.api.CompletedQuests(ctx)
	if err != nil {
		return fmt.Errorf("refresh completed quests: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.received = make(map[string]model.ReceivedQuest, len(received))
	for _, rq := range received {
		q.received[rq.QuestID] = rq
	}
	q.badges = make(map[string]model.CompletedQuest, len(badges))
	for _, b := range badges {
		// 服务端如有脏的重复行，本地仍保证每个任务一枚
		if _, ok := q.badges[b.QuestID]; !ok {
			q.badges[b.QuestID] = b
		}
	}
	return nil
}

// ReceivedAt 暴露接收时间查询，给进行中页面显示已耗时
func (q *QuestLifecycle) ReceivedAt(ctx context.Context, questID string) (time.Time, error) {
	ts, err := q.api.QuestReceivedAt(ctx, questID)
	if err != nil {
		return time.Time{}, err
	}
	if ts.IsZero() {
		return q.now().Add(-fallbackElapsed), nil
	}
	return ts.Time, nil
}

// Complete 把一条接收中的任务标记完成：消费接收实例、铸造徽章，
// 并预结算完成摘要。摘要此时只入栈存着，等 Post 成功后由
// TakeSummary 取走展示，且只能取一次。
//
// 先查本地不变量再发请求：不在接收态或徽章已存在都是
// 调用方错误，直接拒绝，让过期的客户端状态暴露出来。
func (q *QuestLifecycle) Complete(ctx context.Context, questID string) error {
	q.mu.Lock()
	rq, ok := q.received[questID]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("complete %s: %w", questID, ErrNotReceived)
	}
	if _, done := q.badges[questID]; done {
		q.mu.Unlock()
		return fmt.Errorf("complete %s: %w", questID, ErrAlreadyCompleted)
	}
	q.mu.Unlock()

	res, err := q.api.CompleteQuest(ctx, questID)
	if err != nil {
		// 服务端拒绝（含重试撞上已完成）时本地状态保持原样
		return fmt.Errorf("complete %s: %w", questID, err)
	}

	now := q.now()
	receivedAt := res.ReceivedAt.Time
	if receivedAt.IsZero() {
		receivedAt = rq.ReceivedAt.Time
	}
	summary := CompletionSummary{
		QuestID: res.QuestID,
		Title:   res.Title,
		Icon:    res.Icon,
		Elapsed: decomposeElapsed(receivedAt, now),
	}

	rate, rateErr := q.rates.CompletionRate(ctx, questID)
	if rateErr != nil {
		// 结算卡不因难度查询失败而丢；按服务端"无人接收"的默认值处理
		logger.Warn("difficulty lookup failed, defaulting",
			zap.String("quest", questID), zap.Error(rateErr))
		rate = 100
	}
	summary.Tier = model.ClassifyDifficulty(rate)
	summary.Label = summary.Tier.Label()

	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.received, questID)
	if _, dup := q.badges[questID]; !dup {
		q.badges[questID] = model.CompletedQuest{
			QuestID: res.QuestID,
			Title:   res.Title,
			Icon:    res.Icon,
		}
	}
	q.pending = &pendingCompletion{summary: summary}
	logger.Info("quest completed",
		zap.String("quest", questID),
		zap.String("elapsed", summary.Elapsed.String()),
		zap.String("difficulty", summary.Label))
	return nil
}

// PendingPost 下一次发帖应预选的任务（刚完成还没打卡的那条）
func (q *QuestLifecycle) PendingPost() (model.CompletedQuest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil || q.pending.posted {
		return model.CompletedQuest{}, false
	}
	return model.CompletedQuest{
		QuestID: q.pending.summary.QuestID,
		Title:   q.pending.summary.Title,
		Icon:    q.pending.summary.Icon,
	}, true
}

// Post 为刚完成的任务补上证据媒体；成功后解锁完成摘要
func (q *QuestLifecycle) Post(ctx context.Context, filename string, media io.Reader) (*model.Post, error) {
	q.mu.Lock()
	if q.pending == nil || q.pending.posted {
		q.mu.Unlock()
		return nil, ErrNothingToPost
	}
	questID := q.pending.summary.QuestID
	q.mu.Unlock()

	post, err := q.api.UploadPost(ctx, questID, filename, media)
	if err != nil {
		return nil, fmt.Errorf("post quest %s: %w", questID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending != nil && q.pending.summary.QuestID == questID {
		q.pending.posted = true
	}
	return post, nil
}

// TakeSummary 取走完成摘要。只在打卡动作落地之后可取，
// 且取一次即清空——结算卡只弹一次。
func (q *QuestLifecycle) TakeSummary() (CompletionSummary, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil || !q.pending.posted {
		return CompletionSummary{}, false
	}
	s := q.pending.summary
	q.pending = nil
	return s, true
}

// Received 当前接收中的任务快照
func (q *QuestLifecycle) Received() []model.ReceivedQuest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.ReceivedQuest, 0, len(q.received))
	for _, rq := range q.received {
		out = append(out, rq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestID < out[j].QuestID })
	return out
}

// Badges 徽章墙快照，按标题稳定排序供单次渲染
func (q *QuestLifecycle) Badges() []model.CompletedQuest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.CompletedQuest, 0, len(q.badges))
	for _, b := range q.badges {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// decomposeElapsed 把完成耗时拆成天/时/分；receivedAt 缺失或在未来
// 时一律按固定兜底值处理，不让结算流程失败。
func decomposeElapsed(receivedAt, now time.Time) Elapsed {
	d := fallbackElapsed
	if !receivedAt.IsZero() {
		d = now.Sub(receivedAt)
	}
	if d < 0 {
		d = 0
	}
	return Elapsed{
		Days:    int(d / (24 * time.Hour)),
		Hours:   int(d % (24 * time.Hour) / time.Hour),
		Minutes: int(d % time.Hour / time.Minute),
	}
}
