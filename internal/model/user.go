package model

// User 用户公开信息；除头像外不可变
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	PfpURL   string `json:"pfp_url,omitempty"`
}

// Friend 好友列表项（对称关系的一端）
type Friend struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// FriendRequest 收到的待处理好友请求
type FriendRequest struct {
	ID           string `json:"id"`
	FromUserID   string `json:"from_user_id"`
	FromUsername string `json:"from_username"`
}
