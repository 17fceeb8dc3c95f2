package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/driftchat/driftchat/internal/chat"
	"github.com/driftchat/driftchat/internal/config"
	"github.com/driftchat/driftchat/internal/httpapi/middleware"
)

type Handler struct {
	Cfg     config.Config
	ChatSvc *chat.Service
}

func NewHandler(cfg config.Config, svc *chat.Service) *Handler {
	return &Handler{Cfg: cfg, ChatSvc: svc}
}

func userNameFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UserNameKey)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok && name != ""
}
