package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/sidequest-sync/internal/api"
	"github.com/d60-Lab/sidequest-sync/internal/model"
)

type fakeQuestAPI struct {
	received      []model.ReceivedQuest
	completed     []model.CompletedQuest
	completeErr   error
	completeCalls int
	uploadErr     error
	uploadCalls   int
	createdTitle  string
	sharedTo      string
	receivedAt    time.Time
}

func (f *fakeQuestAPI) CreateQuest(_ context.Context, title, icon string) (*model.Quest, error) {
	f.createdTitle = title
	return &model.Quest{ID: "new", Title: title, Icon: icon}, nil
}

func (f *fakeQuestAPI) ShareQuest(_ context.Context, questID, toUserID string) error {
	f.sharedTo = toUserID
	return nil
}

func (f *fakeQuestAPI) ReceivedQuests(context.Context) ([]model.ReceivedQuest, error) {
	return f.received, nil
}

func (f *fakeQuestAPI) QuestReceivedAt(context.Context, string) (model.Timestamp, error) {
	return model.Timestamp{Time: f.receivedAt}, nil
}

func (f *fakeQuestAPI) CompleteQuest(_ context.Context, questID string) (*api.CompleteResult, error) {
	f.completeCalls++
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	for _, rq := range f.received {
		if rq.QuestID == questID {
			return &api.CompleteResult{
				QuestID:    questID,
				Title:      rq.Title,
				Icon:       rq.Icon,
				ReceivedAt: model.Timestamp{Time: f.receivedAt},
			}, nil
		}
	}
	return nil, &api.Error{Status: 404, Detail: "Quest not found"}
}

func (f *fakeQuestAPI) CompletedQuests(context.Context) ([]model.CompletedQuest, error) {
	return f.completed, nil
}

func (f *fakeQuestAPI) UploadPost(_ context.Context, questID, filename string, media io.Reader) (*model.Post, error) {
	f.uploadCalls++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &model.Post{ID: "p1", QuestID: questID}, nil
}

type fixedRates struct {
	rate float64
	err  error
}

func (r fixedRates) CompletionRate(context.Context, string) (float64, error) {
	return r.rate, r.err
}

func newTestLifecycle(t *testing.T, fake *fakeQuestAPI, rates RateSource, now time.Time) *QuestLifecycle {
	t.Helper()
	q := NewQuestLifecycle(fake, rates)
	q.SetClock(func() time.Time { return now })
	require.NoError(t, q.Refresh(context.Background()))
	return q
}

func TestCompleteConsumesReceivedAndMintsBadge(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	fake := &fakeQuestAPI{
		received:   []model.ReceivedQuest{{QuestID: "q1", Title: "Cold plunge", Icon: "🌊"}},
		receivedAt: now.Add(-(49*time.Hour + 30*time.Minute)), // 2d 1h 30m
	}
	q := newTestLifecycle(t, fake, fixedRates{rate: 42}, now)

	require.NoError(t, q.Complete(context.Background(), "q1"))

	assert.Empty(t, q.Received())
	badges := q.Badges()
	require.Len(t, badges, 1)
	assert.Equal(t, "q1", badges[0].QuestID)

	// 打卡之前结算卡不可见
	_, ok := q.TakeSummary()
	assert.False(t, ok)

	_, err := q.Post(context.Background(), "proof.jpg", bytes.NewReader([]byte("img")))
	require.NoError(t, err)

	summary, ok := q.TakeSummary()
	require.True(t, ok)
	assert.Equal(t, Elapsed{Days: 2, Hours: 1, Minutes: 30}, summary.Elapsed)
	assert.Equal(t, model.TierMidnight, summary.Tier)
	assert.Equal(t, "midnight", summary.Label)

	// 只弹一次
	_, ok = q.TakeSummary()
	assert.False(t, ok)
}

func TestCompleteTwiceNeverDuplicatesBadge(t *testing.T) {
	now := time.Now().UTC()
	fake := &fakeQuestAPI{
		received:   []model.ReceivedQuest{{QuestID: "q1", Title: "t", Icon: "i"}},
		receivedAt: now.Add(-time.Hour),
	}
	q := newTestLifecycle(t, fake, fixedRates{rate: 90}, now)

	require.NoError(t, q.Complete(context.Background(), "q1"))
	// 网络重试打回来第二次：本地不变量先挡住，不再发请求
	err := q.Complete(context.Background(), "q1")
	assert.ErrorIs(t, err, ErrNotReceived)
	assert.Equal(t, 1, fake.completeCalls)
	assert.Len(t, q.Badges(), 1)
}

func TestCompleteRejectsWhenBadgeAlreadyPresent(t *testing.T) {
	now := time.Now().UTC()
	fake := &fakeQuestAPI{
		received:  []model.ReceivedQuest{{QuestID: "q1", Title: "t", Icon: "i"}},
		completed: []model.CompletedQuest{{ID: "c1", QuestID: "q1", Title: "t", Icon: "i"}},
	}
	q := newTestLifecycle(t, fake, fixedRates{rate: 90}, now)

	err := q.Complete(context.Background(), "q1")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Zero(t, fake.completeCalls)
}

func TestCompleteUnknownQuestIsCallerError(t *testing.T) {
	q := newTestLifecycle(t, &fakeQuestAPI{}, fixedRates{rate: 90}, time.Now())
	err := q.Complete(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotReceived)
}

func TestCompleteFallsBackToOneHourWithoutTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	fake := &fakeQuestAPI{
		received: []model.ReceivedQuest{{QuestID: "q1", Title: "t", Icon: "i"}},
		// receivedAt 零值：老数据没有时间戳
	}
	q := newTestLifecycle(t, fake, fixedRates{rate: 90}, now)

	require.NoError(t, q.Complete(context.Background(), "q1"))
	_, err := q.Post(context.Background(), "p.jpg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	summary, ok := q.TakeSummary()
	require.True(t, ok)
	assert.Equal(t, Elapsed{Days: 0, Hours: 1, Minutes: 0}, summary.Elapsed)
}

func TestCompleteSurvivesDifficultyLookupFailure(t *testing.T) {
	now := time.Now().UTC()
	fake := &fakeQuestAPI{
		received:   []model.ReceivedQuest{{QuestID: "q1", Title: "t", Icon: "i"}},
		receivedAt: now.Add(-time.Hour),
	}
	q := newTestLifecycle(t, fake, fixedRates{err: errors.New("redis down")}, now)

	require.NoError(t, q.Complete(context.Background(), "q1"))
	_, err := q.Post(context.Background(), "p.jpg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	summary, ok := q.TakeSummary()
	require.True(t, ok)
	assert.Equal(t, model.TierSurface, summary.Tier)
}

func TestPendingPostPreselectsCompletedQuest(t *testing.T) {
	now := time.Now().UTC()
	fake := &fakeQuestAPI{
		received:   []model.ReceivedQuest{{QuestID: "q1", Title: "Ice bath", Icon: "🧊"}},
		receivedAt: now.Add(-time.Hour),
	}
	q := newTestLifecycle(t, fake, fixedRates{rate: 50}, now)

	_, ok := q.PendingPost()
	assert.False(t, ok)

	require.NoError(t, q.Complete(context.Background(), "q1"))
	pending, ok := q.PendingPost()
	require.True(t, ok)
	assert.Equal(t, "q1", pending.QuestID)
	assert.Equal(t, "Ice bath", pending.Title)

	_, err := q.Post(context.Background(), "p.jpg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	_, ok = q.PendingPost()
	assert.False(t, ok)
}

func TestPostWithoutCompletionRejected(t *testing.T) {
	q := newTestLifecycle(t, &fakeQuestAPI{}, fixedRates{rate: 50}, time.Now())
	_, err := q.Post(context.Background(), "p.jpg", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrNothingToPost)
}

func TestProposeValidatesTitle(t *testing.T) {
	q := newTestLifecycle(t, &fakeQuestAPI{}, fixedRates{rate: 50}, time.Now())

	_, err := q.Propose(context.Background(), "   ", "🗺")
	assert.ErrorIs(t, err, ErrInvalidQuest)

	quest, err := q.Propose(context.Background(), "  Touch grass  ", "🌱")
	require.NoError(t, err)
	assert.Equal(t, "Touch grass", quest.Title)
}

func TestShareRequiresBothIDs(t *testing.T) {
	q := newTestLifecycle(t, &fakeQuestAPI{}, fixedRates{rate: 50}, time.Now())
	assert.ErrorIs(t, q.Share(context.Background(), "", "u2"), ErrInvalidQuest)
	assert.ErrorIs(t, q.Share(context.Background(), "q1", ""), ErrInvalidQuest)
	assert.NoError(t, q.Share(context.Background(), "q1", "u2"))
}

func TestElapsedStringZeroSuppression(t *testing.T) {
	assert.Equal(t, "2d 3h", Elapsed{Days: 2, Hours: 3}.String())
	assert.Equal(t, "3h 7m", Elapsed{Hours: 3, Minutes: 7}.String())
	assert.Equal(t, "2d 5m", Elapsed{Days: 2, Minutes: 5}.String())
	assert.Equal(t, "0m", Elapsed{}.String())
}

func TestDecomposeElapsedNeverNegative(t *testing.T) {
	now := time.Now()
	// received_at 在未来（时钟偏斜）也不能出负数
	e := decomposeElapsed(now.Add(10*time.Minute), now)
	assert.Equal(t, Elapsed{}, e)
}
