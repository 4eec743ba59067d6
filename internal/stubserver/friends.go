package stubserver

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) sendFriendRequest(c *gin.Context) {
	username := c.Query("username")
	userID := currentUserID(c)

	var target User
	if err := s.db.Where("username = ?", username).First(&target).Error; err != nil {
		fail(c, 404, "User not found")
		return
	}

	var existing FriendRequest
	err := s.db.Where("from_user_id = ? AND to_user_id = ? AND status = ?",
		userID, target.ID, requestStatusPending).First(&existing).Error
	if err == nil {
		fail(c, 400, "Request already sent")
		return
	}

	fr := FriendRequest{
		ID: newID(), FromUserID: userID, ToUserID: target.ID,
		Status: requestStatusPending, CreatedAt: s.now(),
	}
	if err := s.db.Create(&fr).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, gin.H{"ok": true})
}

func (s *Server) incomingRequests(c *gin.Context) {
	var reqs []FriendRequest
	err := s.db.Where("to_user_id = ? AND status = ?", currentUserID(c), requestStatusPending).Find(&reqs).Error
	if err != nil {
		fail(c, 500, err.Error())
		return
	}

	out := make([]gin.H, 0, len(reqs))
	for _, r := range reqs {
		var from User
		fromUsername := ""
		if err := s.db.First(&from, "id = ?", r.FromUserID).Error; err == nil {
			fromUsername = from.Username
		}
		out = append(out, gin.H{
			"id":            r.ID,
			"from_user_id":  r.FromUserID,
			"from_username": fromUsername,
		})
	}
	c.JSON(200, out)
}

func (s *Server) respondFriendRequest(c *gin.Context) {
	accept, err := strconv.ParseBool(c.Query("accept"))
	if err != nil {
		fail(c, 422, "accept must be a boolean")
		return
	}

	var fr FriendRequest
	if err := s.db.First(&fr, "id = ?", c.Param("id")).Error; err != nil || fr.ToUserID != currentUserID(c) {
		fail(c, 404, "Not Found")
		return
	}

	status := requestStatusRejected
	if accept {
		status = requestStatusAccepted
	}
	if err := s.db.Model(&FriendRequest{}).Where("id = ?", fr.ID).Update("status", status).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, gin.H{"status": status})
}

func (s *Server) listFriends(c *gin.Context) {
	userID := currentUserID(c)
	var accepted []FriendRequest
	err := s.db.Where("(from_user_id = ? OR to_user_id = ?) AND status = ?",
		userID, userID, requestStatusAccepted).Find(&accepted).Error
	if err != nil {
		fail(c, 500, err.Error())
		return
	}

	out := make([]gin.H, 0, len(accepted))
	for _, r := range accepted {
		friendID := r.FromUserID
		if friendID == userID {
			friendID = r.ToUserID
		}
		var friend User
		if err := s.db.First(&friend, "id = ?", friendID).Error; err != nil {
			continue
		}
		out = append(out, gin.H{"id": friend.ID, "username": friend.Username})
	}
	c.JSON(200, out)
}

// removeFriend 把双向中任一条 accepted 请求翻成 rejected，
// 维持 list_friends 只认 accepted 的简单模型
func (s *Server) removeFriend(c *gin.Context) {
	userID := currentUserID(c)
	friendID := c.Param("id")

	res := s.db.Model(&FriendRequest{}).
		Where("((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)) AND status = ?",
			userID, friendID, friendID, userID, requestStatusAccepted).
		Update("status", requestStatusRejected)
	if res.Error != nil {
		fail(c, 500, res.Error.Error())
		return
	}
	if res.RowsAffected == 0 {
		fail(c, 404, "Friend relationship not found")
		return
	}
	c.JSON(200, gin.H{"ok": true})
}
