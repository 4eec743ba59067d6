package stubserver

import (
	"errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type credentialsIn struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) signup(c *gin.Context) {
	var in credentialsIn
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, 422, err.Error())
		return
	}

	var existing User
	if err := s.db.Where("username = ?", in.Username).First(&existing).Error; err == nil {
		fail(c, 400, "USERNAME_TAKEN")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, 500, err.Error())
		return
	}
	user := User{ID: newID(), Username: in.Username, Password: string(hashed), CreatedAt: s.now()}
	if err := s.db.Create(&user).Error; err != nil {
		// 并发撞名走唯一索引兜底
		fail(c, 400, "USERNAME_TAKEN")
		return
	}

	s.issueAuth(c, user)
}

func (s *Server) login(c *gin.Context) {
	var in credentialsIn
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, 422, err.Error())
		return
	}

	var user User
	err := s.db.Where("username = ?", in.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) ||
		(err == nil && bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil) {
		fail(c, 401, "Unauthorized")
		return
	}
	if err != nil {
		fail(c, 500, err.Error())
		return
	}

	s.issueAuth(c, user)
}

func (s *Server) issueAuth(c *gin.Context, user User) {
	token, err := s.mintToken(user.ID)
	if err != nil {
		fail(c, 500, err.Error())
		return
	}
	c.JSON(200, gin.H{
		"token": token,
		"user":  gin.H{"id": user.ID, "username": user.Username},
	})
}
