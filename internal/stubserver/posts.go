package stubserver

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (s *Server) postOut(p Post, myVote int) gin.H {
	var quest Quest
	title, icon := "", ""
	if err := s.db.First(&quest, "id = ?", p.QuestID).Error; err == nil {
		title, icon = quest.Title, quest.Icon
	}
	return gin.H{
		"id":          p.ID,
		"quest_id":    p.QuestID,
		"media_url":   p.MediaURL,
		"media_type":  p.MediaType,
		"votes":       p.Votes,
		"quest_title": title,
		"quest_icon":  icon,
		"my_vote":     myVote,
	}
}

func (s *Server) listPosts(c *gin.Context) {
	userID := currentUserID(c)
	var posts []Post
	if err := s.db.Order("created_at DESC").Find(&posts).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}

	var votes []PostVote
	if err := s.db.Where("user_id = ?", userID).Find(&votes).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	voteMap := make(map[string]int, len(votes))
	for _, v := range votes {
		voteMap[v.PostID] = v.Value
	}

	out := make([]gin.H, 0, len(posts))
	for _, p := range posts {
		out = append(out, s.postOut(p, voteMap[p.ID]))
	}
	c.JSON(200, out)
}

func (s *Server) uploadPost(c *gin.Context) {
	questID := c.PostForm("quest_id")
	var quest Quest
	if err := s.db.First(&quest, "id = ?", questID).Error; err != nil {
		fail(c, 404, "Quest not found")
		return
	}

	file, err := c.FormFile("file")
	if err != nil || file.Size == 0 {
		fail(c, 400, "Empty file")
		return
	}

	contentType := strings.ToLower(file.Header.Get("Content-Type"))
	mediaType := "image"
	if strings.HasPrefix(contentType, "video/") {
		mediaType = "video"
	}

	// 桩不落对象存储，直接存一个可判等的对象键
	key := fmt.Sprintf("posts/%s/%s%s", questID, newID(), path.Ext(file.Filename))
	post := Post{
		ID: newID(), QuestID: questID, UserID: currentUserID(c),
		MediaURL: key, MediaType: mediaType, CreatedAt: s.now(),
	}
	if err := s.db.Create(&post).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, s.postOut(post, 0))
}

func (s *Server) votePost(c *gin.Context) {
	postID := c.Param("id")
	userID := currentUserID(c)
	delta, err := strconv.Atoi(c.Query("delta"))
	if err != nil {
		fail(c, 422, "delta must be an integer")
		return
	}

	var post Post
	if err := s.db.First(&post, "id = ?", postID).Error; err != nil {
		fail(c, 404, "Post not found")
		return
	}

	var myVote int
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		var existing PostVote
		err := tx.Where("post_id = ? AND user_id = ?", postID, userID).First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		prev := 0
		if found {
			prev = existing.Value
		}
		next := prev + delta
		if next < -1 || next > 1 {
			return errInvalidTransition
		}

		switch {
		case next == 0 && found:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		case next != 0 && found:
			existing.Value = next
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
		case next != 0:
			v := PostVote{ID: newID(), PostID: postID, UserID: userID, Value: next}
			if err := tx.Create(&v).Error; err != nil {
				return err
			}
		}

		myVote = next
		return tx.Model(&Post{}).Where("id = ?", postID).
			Update("votes", gorm.Expr("votes + ?", delta)).Error
	})
	if errors.Is(txErr, errInvalidTransition) {
		fail(c, 400, "Invalid vote transition")
		return
	}
	if txErr != nil {
		fail(c, 500, txErr.Error())
		return
	}

	if err := s.db.First(&post, "id = ?", postID).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, s.postOut(post, myVote))
}

func (s *Server) deletePost(c *gin.Context) {
	var post Post
	if err := s.db.First(&post, "id = ?", c.Param("id")).Error; err != nil {
		fail(c, 404, "Post not found")
		return
	}
	if post.UserID != currentUserID(c) {
		fail(c, 403, "Not your post")
		return
	}
	if err := s.db.Delete(&post).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, gin.H{"ok": true})
}

func (s *Server) listComments(c *gin.Context) {
	postID := c.Param("id")
	var post Post
	if err := s.db.First(&post, "id = ?", postID).Error; err != nil {
		fail(c, 404, "Post not found")
		return
	}

	var comments []PostComment
	if err := s.db.Where("post_id = ?", postID).Order("created_at ASC").Find(&comments).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}

	out := make([]gin.H, 0, len(comments))
	for _, cm := range comments {
		out = append(out, s.commentOut(cm))
	}
	c.JSON(200, out)
}

type commentIn struct {
	Content string `json:"content" binding:"required"`
}

func (s *Server) createComment(c *gin.Context) {
	postID := c.Param("id")
	var post Post
	if err := s.db.First(&post, "id = ?", postID).Error; err != nil {
		fail(c, 404, "Post not found")
		return
	}

	var in commentIn
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, 422, err.Error())
		return
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		fail(c, 400, "Comment cannot be empty")
		return
	}

	comment := PostComment{
		ID: newID(), PostID: postID, UserID: currentUserID(c),
		Content: content, CreatedAt: s.now(),
	}
	if err := s.db.Create(&comment).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, s.commentOut(comment))
}

func (s *Server) commentOut(cm PostComment) gin.H {
	username := ""
	var user User
	if err := s.db.First(&user, "id = ?", cm.UserID).Error; err == nil {
		username = user.Username
	}
	return gin.H{
		"id":         cm.ID,
		"post_id":    cm.PostID,
		"user_id":    cm.UserID,
		"username":   username,
		"content":    cm.Content,
		"created_at": cm.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
