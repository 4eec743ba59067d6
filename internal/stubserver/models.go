package stubserver

import "time"

// gorm 模型只服务于协议桩，字段对齐线上后端的表结构

type User struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Username  string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"` // bcrypt
	PfpKey    string
	CreatedAt time.Time
}

func (User) TableName() string { return "users" }

type Quest struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Title     string `gorm:"not null"`
	Icon      string
	Votes     int `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (Quest) TableName() string { return "quests" }

// QuestVote 每 (user, quest) 至多一行，value ∈ {-1, 1}
type QuestVote struct {
	ID      string `gorm:"primaryKey;type:varchar(36)"`
	QuestID string `gorm:"type:varchar(36);index:idx_qv_pair,unique;not null"`
	UserID  string `gorm:"type:varchar(36);index:idx_qv_pair,unique;not null"`
	Value   int    `gorm:"not null"`
}

func (QuestVote) TableName() string { return "quest_votes" }

const (
	receivedStatusReceived  = "received"
	receivedStatusCompleted = "completed"
)

type ReceivedQuest struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	QuestID   string `gorm:"type:varchar(36);index;not null"`
	UserID    string `gorm:"type:varchar(36);index;not null"`
	Status    string `gorm:"type:varchar(16);index;not null;default:received"`
	CreatedAt time.Time
}

func (ReceivedQuest) TableName() string { return "received_quests" }

type CompletedQuest struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	QuestID   string `gorm:"type:varchar(36);index:idx_cq_pair,unique;not null"`
	UserID    string `gorm:"type:varchar(36);index:idx_cq_pair,unique;not null"`
	CreatedAt time.Time
}

func (CompletedQuest) TableName() string { return "completed_quests" }

const (
	requestStatusPending  = "pending"
	requestStatusAccepted = "accepted"
	requestStatusRejected = "rejected"
)

type FriendRequest struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	FromUserID string `gorm:"type:varchar(36);index;not null"`
	ToUserID   string `gorm:"type:varchar(36);index;not null"`
	Status     string `gorm:"type:varchar(16);index;not null;default:pending"`
	CreatedAt  time.Time
}

func (FriendRequest) TableName() string { return "friend_requests" }

type Post struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	QuestID   string `gorm:"type:varchar(36);index;not null"`
	UserID    string `gorm:"type:varchar(36);index;not null"`
	MediaURL  string `gorm:"not null"`
	MediaType string `gorm:"type:varchar(16);not null"`
	Votes     int    `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (Post) TableName() string { return "posts" }

type PostVote struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	PostID string `gorm:"type:varchar(36);index:idx_pv_pair,unique;not null"`
	UserID string `gorm:"type:varchar(36);index:idx_pv_pair,unique;not null"`
	Value  int    `gorm:"not null"`
}

func (PostVote) TableName() string { return "post_votes" }

type PostComment struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	PostID    string `gorm:"type:varchar(36);index;not null"`
	UserID    string `gorm:"type:varchar(36);not null"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (PostComment) TableName() string { return "post_comments" }

type ConstellationLayout struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	UserID string `gorm:"uniqueIndex;type:varchar(36);not null"`
	Data   string `gorm:"type:text"`
}

func (ConstellationLayout) TableName() string { return "constellation_layouts" }
