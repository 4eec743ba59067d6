package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/sidequest-sync/internal/model"
	"github.com/d60-Lab/sidequest-sync/pkg/logger"
)

var ErrInvalidDirection = errors.New("vote direction must be +1 or -1")

// VoteFunc 把一次投票增量发给服务端，返回更新后的权威聚合值。
// 帖子和任务各自绑定一个（api.VotePost / api.VoteQuest 的适配）。
type VoteFunc func(ctx context.Context, entityID string, delta int) (total int, err error)

type ledgerEntry struct {
	dir   model.VoteDirection
	count int
	// 回滚或响应乱序后本地聚合值不可信，等 Resync 对齐
	stale    bool
	inflight int
}

// VoteLedger 每会话一份的投票账本：按实体记录当前方向，
// 把点击意图换算成最小网络增量，乐观生效、失败补偿。
type VoteLedger struct {
	mu      sync.Mutex
	vote    VoteFunc
	entries map[string]*ledgerEntry
}

func NewVoteLedger(vote VoteFunc) *VoteLedger {
	return &VoteLedger{vote: vote, entries: make(map[string]*ledgerEntry)}
}

// Sync 用服务端返回的权威状态灌入/覆盖一个实体。
// 有在途指令时跳过，否则会吃掉还没确认的乐观增量。
func (l *VoteLedger) Sync(entityID string, total int, my model.VoteDirection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(entityID)
	if e.inflight > 0 {
		return
	}
	e.dir = my
	e.count = total
	e.stale = false
}

// SyncFromServer 用 with_votes 榜单整批灌入账本初始状态
func (l *VoteLedger) SyncFromServer(quests []model.Quest) {
	for _, q := range quests {
		l.Sync(q.ID, q.Votes, q.MyVote)
	}
}

// ToggleOutcome 一次点击意图的本地结算结果
type ToggleOutcome struct {
	CommandID string
	Prev      model.VoteDirection
	Next      model.VoteDirection
	Delta     int
	// Count 乐观生效后的本地聚合值
	Count   int
	Applied bool
}

// Toggle 处理一次「顶 / 踩」意图。同方向再点一次是取消，不是重复累加。
//
// prev/next/delta 的换算在锁内完成，permits 并发连点：每次都从
// 最新的本地 prev 推导，严格按意图顺序串行化增量；网络往返在锁外，
// 响应回调里再次 Toggle 不会死锁。
func (l *VoteLedger) Toggle(ctx context.Context, entityID string, direction model.VoteDirection) (ToggleOutcome, error) {
	if direction != model.Upvote && direction != model.Downvote {
		return ToggleOutcome{}, ErrInvalidDirection
	}

	l.mu.Lock()
	e := l.entry(entityID)
	prev := e.dir
	next := direction
	if prev == direction {
		next = model.NoVote
	}
	delta := int(next) - int(prev)
	if delta == 0 {
		// 连点去抖：没有状态变化就不打网络请求
		l.mu.Unlock()
		return ToggleOutcome{Prev: prev, Next: next, Count: e.count}, nil
	}

	out := ToggleOutcome{
		CommandID: uuid.NewString(),
		Prev:      prev,
		Next:      next,
		Delta:     delta,
		Applied:   true,
	}

	// 乐观生效：UI 立即看到新方向和新计数
	e.dir = next
	e.count += delta
	e.inflight++
	out.Count = e.count
	l.mu.Unlock()

	logger.Debug("vote toggle issued",
		zap.String("entity", entityID),
		zap.String("command", out.CommandID),
		zap.Int("delta", delta))

	total, err := l.vote(ctx, entityID, delta)

	l.mu.Lock()
	defer l.mu.Unlock()
	e.inflight--
	if err != nil {
		// 补偿按本指令自己发出的 delta 反推，而不是回写快照：
		// 期间若有后续 toggle 改过方向，不能被这里清掉
		e.dir = model.ClampDirection(int8(e.dir) - int8(delta))
		e.count -= delta
		e.stale = true
		logger.Warn("vote toggle failed, rolled back",
			zap.String("entity", entityID),
			zap.String("command", out.CommandID),
			zap.Error(err))
		return out, fmt.Errorf("vote %s: %w", entityID, err)
	}

	if e.inflight == 0 {
		// 本指令是最后一个落地的，服务端返回值即当前权威聚合
		e.count = total
		e.stale = false
	} else {
		// 还有更早发出的指令在途，响应到达顺序未知，聚合值先存疑
		e.stale = true
	}
	return out, nil
}

// Direction 当前记录的投票方向；没互动过的实体为 NoVote
func (l *VoteLedger) Direction(entityID string) model.VoteDirection {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[entityID]; ok {
		return e.dir
	}
	return model.NoVote
}

// Count 本地缓存的聚合票数（乐观值）
func (l *VoteLedger) Count(entityID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[entityID]; ok {
		return e.count
	}
	return 0
}

// Stale 本地聚合值是否需要等下一次权威拉取对齐
func (l *VoteLedger) Stale(entityID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[entityID]; ok {
		return e.stale
	}
	return false
}

// StaleIDs 快照当前所有存疑实体，交给 reconciler 批量回源
func (l *VoteLedger) StaleIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []string
	for id, e := range l.entries {
		if e.stale && e.inflight == 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (l *VoteLedger) entry(entityID string) *ledgerEntry {
	e, ok := l.entries[entityID]
	if !ok {
		e = &ledgerEntry{}
		l.entries[entityID] = e
	}
	return e
}
