package stubserver

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/gin-gonic/gin"
)

func (s *Server) me(c *gin.Context) {
	var user User
	if err := s.db.First(&user, "id = ?", currentUserID(c)).Error; err != nil {
		fail(c, 404, "User not found")
		return
	}
	c.JSON(200, userOut(user))
}

func (s *Server) userByUsername(c *gin.Context) {
	var user User
	if err := s.db.Where("username = ?", c.Param("username")).First(&user).Error; err != nil {
		fail(c, 404, "User not found")
		return
	}
	c.JSON(200, userOut(user))
}

func userOut(u User) gin.H {
	out := gin.H{"id": u.ID, "username": u.Username}
	if u.PfpKey != "" {
		out["pfp_url"] = u.PfpKey
	}
	return out
}

func (s *Server) uploadPfp(c *gin.Context) {
	var user User
	if err := s.db.First(&user, "id = ?", currentUserID(c)).Error; err != nil {
		fail(c, 404, "User not found")
		return
	}

	file, err := c.FormFile("file")
	if err != nil || file.Size == 0 {
		fail(c, 400, "Empty file")
		return
	}

	key := fmt.Sprintf("pfp/%s/%s%s", user.ID, newID(), path.Ext(file.Filename))
	if err := s.db.Model(&User{}).Where("id = ?", user.ID).Update("pfp_key", key).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, gin.H{"pfp_url": key})
}

func (s *Server) getConstellation(c *gin.Context) {
	var layout ConstellationLayout
	if err := s.db.Where("user_id = ?", currentUserID(c)).First(&layout).Error; err != nil {
		c.JSON(200, gin.H{"badges": []any{}, "lines": []any{}})
		return
	}
	c.Data(200, "application/json", []byte(layout.Data))
}

func (s *Server) saveConstellation(c *gin.Context) {
	var payload json.RawMessage
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, 422, err.Error())
		return
	}

	userID := currentUserID(c)
	var layout ConstellationLayout
	if err := s.db.Where("user_id = ?", userID).First(&layout).Error; err == nil {
		if err := s.db.Model(&ConstellationLayout{}).Where("id = ?", layout.ID).
			Update("data", string(payload)).Error; err != nil {
			fail(c, 500, err.Error())
			return
		}
	} else {
		layout = ConstellationLayout{ID: newID(), UserID: userID, Data: string(payload)}
		if err := s.db.Create(&layout).Error; err != nil {
			fail(c, 500, err.Error())
			return
		}
	}
	c.JSON(200, gin.H{"ok": true})
}
