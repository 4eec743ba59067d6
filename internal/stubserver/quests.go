package stubserver

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func questOut(q Quest) gin.H {
	return gin.H{
		"id":         q.ID,
		"title":      q.Title,
		"icon":       q.Icon,
		"votes":      q.Votes,
		"created_at": q.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Server) listQuests(c *gin.Context) {
	q := s.db.Model(&Quest{})
	switch c.DefaultQuery("period", "all") {
	case "week":
		q = q.Where("created_at >= ?", s.now().AddDate(0, 0, -7))
	case "month":
		q = q.Where("created_at >= ?", s.now().AddDate(0, 0, -30))
	}

	var quests []Quest
	if err := q.Order("votes DESC").Find(&quests).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	out := make([]gin.H, 0, len(quests))
	for _, quest := range quests {
		out = append(out, questOut(quest))
	}
	c.JSON(200, out)
}

func (s *Server) listQuestsWithVotes(c *gin.Context) {
	userID := currentUserID(c)
	var quests []Quest
	if err := s.db.Order("votes DESC").Find(&quests).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}

	var votes []QuestVote
	if err := s.db.Where("user_id = ?", userID).Find(&votes).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	voteMap := make(map[string]int, len(votes))
	for _, v := range votes {
		voteMap[v.QuestID] = v.Value
	}

	out := make([]gin.H, 0, len(quests))
	for _, quest := range quests {
		h := questOut(quest)
		h["my_vote"] = voteMap[quest.ID]
		out = append(out, h)
	}
	c.JSON(200, out)
}

type questCreateIn struct {
	Title string `json:"title" binding:"required"`
	Icon  string `json:"icon"`
}

func (s *Server) createQuest(c *gin.Context) {
	var in questCreateIn
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, 422, err.Error())
		return
	}
	quest := Quest{ID: newID(), Title: in.Title, Icon: in.Icon, CreatedAt: s.now()}
	if err := s.db.Create(&quest).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, questOut(quest))
}

func (s *Server) voteQuest(c *gin.Context) {
	questID := c.Param("id")
	userID := currentUserID(c)
	delta, err := strconv.Atoi(c.Query("delta"))
	if err != nil {
		fail(c, 422, "delta must be an integer")
		return
	}

	var quest Quest
	if err := s.db.First(&quest, "id = ?", questID).Error; err != nil {
		fail(c, 404, "Quest not found")
		return
	}

	var myVote int
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		var existing QuestVote
		err := tx.Where("quest_id = ? AND user_id = ?", questID, userID).First(&existing).Error
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
			v := QuestVote{ID: newID(), QuestID: questID, UserID: userID, Value: next}
			if err := tx.Create(&v).Error; err != nil {
				return err
			}
		}

		myVote = next
		return tx.Model(&Quest{}).Where("id = ?", questID).
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

	if err := s.db.First(&quest, "id = ?", questID).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	h := questOut(quest)
	h["my_vote"] = myVote
	c.JSON(200, h)
}

var errInvalidTransition = errors.New("invalid vote transition")

func (s *Server) questDifficulty(c *gin.Context) {
	questID := c.Param("id")
	var receivedCount, completedCount int64
	if err := s.db.Model(&ReceivedQuest{}).Where("quest_id = ?", questID).Count(&receivedCount).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	if err := s.db.Model(&CompletedQuest{}).Where("quest_id = ?", questID).Count(&completedCount).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}

	rate := 100.0 // 没人接过视为最容易
	if receivedCount > 0 {
		rate = float64(completedCount) / float64(receivedCount) * 100.0
	}
	c.JSON(200, gin.H{"completion_rate": rate})
}

func (s *Server) questReceivedAt(c *gin.Context) {
	var rq ReceivedQuest
	err := s.db.Where("quest_id = ? AND user_id = ?", c.Param("id"), currentUserID(c)).First(&rq).Error
	if err != nil || rq.CreatedAt.IsZero() {
		// 老数据兜底：按一小时前算
		c.JSON(200, gin.H{"received_at": s.now().Add(-time.Hour).UTC().Format(time.RFC3339Nano)})
		return
	}
	c.JSON(200, gin.H{"received_at": rq.CreatedAt.UTC().Format(time.RFC3339Nano)})
}

func (s *Server) receivedQuests(c *gin.Context) {
	var rqs []ReceivedQuest
	err := s.db.Where("user_id = ? AND status = ?", currentUserID(c), receivedStatusReceived).Find(&rqs).Error
	if err != nil {
		fail(c, 500, err.Error())
		return
	}

	out := make([]gin.H, 0, len(rqs))
	for _, rq := range rqs {
		var quest Quest
		if err := s.db.First(&quest, "id = ?", rq.QuestID).Error; err != nil {
			continue
		}
		out = append(out, gin.H{
			"id":          quest.ID,
			"title":       quest.Title,
			"icon":        quest.Icon,
			"received_at": rq.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	c.JSON(200, out)
}

func (s *Server) completeQuest(c *gin.Context) {
	questID := c.Param("id")
	userID := currentUserID(c)

	var rq ReceivedQuest
	err := s.db.Where("quest_id = ? AND user_id = ? AND status = ?",
		questID, userID, receivedStatusReceived).First(&rq).Error
	if err != nil {
		fail(c, 404, "Quest not found")
		return
	}

	var existing CompletedQuest
	if err := s.db.Where("quest_id = ? AND user_id = ?", questID, userID).First(&existing).Error; err == nil {
		fail(c, 400, "Quest already completed")
		return
	}

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ReceivedQuest{}).Where("id = ?", rq.ID).
			Update("status", receivedStatusCompleted).Error; err != nil {
			return err
		}
		return tx.Create(&CompletedQuest{
			ID: newID(), QuestID: questID, UserID: userID, CreatedAt: s.now(),
		}).Error
	})
	if txErr != nil {
		fail(c, 500, txErr.Error())
		return
	}

	var quest Quest
	if err := s.db.First(&quest, "id = ?", questID).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}

	receivedAt := rq.CreatedAt
	if receivedAt.IsZero() {
		receivedAt = s.now().Add(-time.Hour)
	}
	c.JSON(200, gin.H{
		"quest_id":    quest.ID,
		"title":       quest.Title,
		"icon":        quest.Icon,
		"received_at": receivedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) completedQuests(c *gin.Context) {
	s.renderCompleted(c, currentUserID(c))
}

func (s *Server) completedQuestsByUser(c *gin.Context) {
	s.renderCompleted(c, c.Param("id"))
}

func (s *Server) renderCompleted(c *gin.Context, userID string) {
	var cqs []CompletedQuest
	if err := s.db.Where("user_id = ?", userID).Find(&cqs).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	out := make([]gin.H, 0, len(cqs))
	for _, cq := range cqs {
		var quest Quest
		if err := s.db.First(&quest, "id = ?", cq.QuestID).Error; err != nil {
			continue
		}
		out = append(out, gin.H{
			"id":       cq.ID,
			"quest_id": cq.QuestID,
			"title":    quest.Title,
			"icon":     quest.Icon,
		})
	}
	c.JSON(200, out)
}

type shareIn struct {
	QuestID  string `json:"quest_id" binding:"required"`
	ToUserID string `json:"to_user_id" binding:"required"`
}

func (s *Server) shareQuest(c *gin.Context) {
	var in shareIn
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, 422, err.Error())
		return
	}
	rq := ReceivedQuest{
		ID: newID(), QuestID: in.QuestID, UserID: in.ToUserID,
		Status: receivedStatusReceived, CreatedAt: s.now(),
	}
	if err := s.db.Create(&rq).Error; err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, gin.H{"ok": true})
}
