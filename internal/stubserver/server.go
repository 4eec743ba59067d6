// Package stubserver 用 gin + gorm 复刻后端的 REST 契约，给集成测试
// 和基准压测一个可进程内启动的后端。响应形状（含错误的
// {"detail": ...}）与线上 FastAPI 服务保持逐字节兼容。
package stubserver

import (
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const tokenTTL = 7 * 24 * time.Hour

// Open 建库：空 dsn 用内存 sqlite，postgres dsn 走 pg（跑真库契约测试）
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	var db *gorm.DB
	var err error
	if dsn == "" {
		db, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), cfg)
	} else {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	}
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&User{}, &Quest{}, &QuestVote{},
		&ReceivedQuest{}, &CompletedQuest{},
		&FriendRequest{}, &Post{}, &PostVote{}, &PostComment{},
		&ConstellationLayout{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

type Server struct {
	db     *gorm.DB
	secret []byte
	engine *gin.Engine
	now    func() time.Time
}

func New(db *gorm.DB, secret string) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{db: db, secret: []byte(secret), now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery())
	// 线上网关开了压缩，桩也开，客户端透明解压
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.POST("/auth/signup", s.signup)
	r.POST("/auth/login", s.login)

	r.GET("/quests", s.listQuests)
	r.GET("/quests/:id/difficulty", s.questDifficulty)

	auth := r.Group("", s.requireAuth)
	{
		auth.GET("/quests/with_votes", s.listQuestsWithVotes)
		auth.POST("/quests", s.createQuest)
		auth.POST("/quests/:id/vote", s.voteQuest)
		auth.GET("/quests/:id/received-at", s.questReceivedAt)
		auth.GET("/quests/received", s.receivedQuests)
		auth.POST("/quests/:id/complete", s.completeQuest)
		auth.GET("/quests/completed", s.completedQuests)
		auth.GET("/quests/completed/by-user/:id", s.completedQuestsByUser)
		auth.POST("/share", s.shareQuest)

		auth.POST("/friends/request", s.sendFriendRequest)
		auth.GET("/friends/incoming", s.incomingRequests)
		auth.POST("/friends/:id/respond", s.respondFriendRequest)
		auth.GET("/friends/list", s.listFriends)
		auth.POST("/friends/:id/remove", s.removeFriend)

		auth.GET("/posts", s.listPosts)
		auth.POST("/posts/upload", s.uploadPost)
		auth.POST("/posts/:id/vote", s.votePost)
		auth.DELETE("/posts/:id", s.deletePost)
		auth.GET("/posts/:id/comments", s.listComments)
		auth.POST("/posts/:id/comments", s.createComment)

		auth.GET("/users/me", s.me)
		auth.GET("/users/by-username/:username", s.userByUsername)
		auth.POST("/users/me/pfp", s.uploadPfp)

		auth.GET("/constellation", s.getConstellation)
		auth.POST("/constellation", s.saveConstellation)
	}

	s.engine = r
	return s
}

// Router 暴露给 httptest.NewServer / 进程内 ServeHTTP
func (s *Server) Router() *gin.Engine { return s.engine }

// SetClock 测试里固定时间用
func (s *Server) SetClock(now func() time.Time) { s.now = now }

func fail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func (s *Server) mintToken(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(s.now().Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		fail(c, 401, "Not authenticated")
		return
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.Subject == "" {
		fail(c, 401, "Not authenticated")
		return
	}
	c.Set("user_id", claims.Subject)
	c.Next()
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

func newID() string { return uuid.New().String() }
