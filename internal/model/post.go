package model

// Post 打卡内容（媒体地址为签名 URL，由服务端生成）
type Post struct {
	ID         string        `json:"id"`
	QuestID    string        `json:"quest_id"`
	MediaURL   string        `json:"media_url"`
	MediaType  string        `json:"media_type"` // image / video
	Votes      int           `json:"votes"`
	QuestTitle string        `json:"quest_title,omitempty"`
	QuestIcon  string        `json:"quest_icon,omitempty"`
	MyVote     VoteDirection `json:"my_vote,omitempty"`
}

// Comment 帖子评论
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at,omitempty"`
}
