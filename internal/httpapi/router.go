package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftchat/driftchat/internal/chat"
	"github.com/driftchat/driftchat/internal/common"
	"github.com/driftchat/driftchat/internal/config"
	"github.com/driftchat/driftchat/internal/httpapi/handlers"
	"github.com/driftchat/driftchat/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, svc *chat.Service) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(cfg, svc)

	r.GET("/ping", h.Ping)
	r.POST("/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.POST("/api/chat", h.PostChat)
	authGroup.GET("/api/chat", h.ResumeChat)
	authGroup.DELETE("/api/chat", h.DeleteChat)
	authGroup.GET("/api/chat/:chat_id/messages", h.ListChatMessages)

	return r
}
