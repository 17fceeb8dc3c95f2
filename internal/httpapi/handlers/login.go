package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driftchat/driftchat/internal/auth"
	"github.com/driftchat/driftchat/internal/common"
)

type loginReq struct {
	Name string `json:"name" binding:"required"`
}

// Login issues a token for a name. The User row itself is created lazily on
// the first chat turn.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "name is required")
		return
	}

	token, err := auth.SignJWT(name, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	common.OK(c, gin.H{
		"name":  name,
		"token": token,
	})
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
