package model

// Period 任务榜单的时间窗口过滤
type Period string

const (
	PeriodAll   Period = "all"
	PeriodMonth Period = "month"
	PeriodWeek  Period = "week"
)

// Quest 全局任务目录里的一条任务；Votes 为服务端权威聚合值
type Quest struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Icon      string        `json:"icon"`
	Votes     int           `json:"votes"`
	MyVote    VoteDirection `json:"my_vote,omitempty"`
	CreatedAt Timestamp     `json:"created_at,omitempty"`
}

// ReceivedQuest 某用户持有的任务实例；完成后即消费
type ReceivedQuest struct {
	QuestID    string    `json:"id"`
	Title      string    `json:"title"`
	Icon       string    `json:"icon"`
	ReceivedAt Timestamp `json:"received_at,omitempty"`
}

// CompletedQuest 完成徽章；每个 (user, quest) 至多一枚
type CompletedQuest struct {
	ID      string `json:"id"`
	QuestID string `json:"quest_id"`
	Title   string `json:"title"`
	Icon    string `json:"icon"`
}
