package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driftchat/driftchat/internal/chat"
	"github.com/driftchat/driftchat/internal/common"
	"github.com/driftchat/driftchat/internal/stream"
)

type postChatMessage struct {
	ID          string            `json:"id" binding:"required"`
	Content     string            `json:"content"`
	Parts       []chat.Part       `json:"parts"`
	Attachments []chat.Attachment `json:"experimental_attachments"`
}

type postChatReq struct {
	ID                     string          `json:"id" binding:"required"`
	Message                postChatMessage `json:"message" binding:"required"`
	SelectedChatModel      string          `json:"selectedChatModel"`
	SelectedVisibilityType string          `json:"selectedVisibilityType"`
}

func requestHints(c *gin.Context) chat.RequestHints {
	return chat.RequestHints{
		City:      c.GetHeader("X-Vercel-IP-City"),
		Country:   c.GetHeader("X-Vercel-IP-Country"),
		Latitude:  c.GetHeader("X-Vercel-IP-Latitude"),
		Longitude: c.GetHeader("X-Vercel-IP-Longitude"),
	}
}

func failChatErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrForbidden):
		common.Fail(c, http.StatusForbidden, 40301, "forbidden")
	case errors.Is(err, chat.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "not found")
	case errors.Is(err, chat.ErrQuotaExceeded):
		common.Fail(c, http.StatusTooManyRequests, 42901, "message quota exceeded")
	case errors.Is(err, chat.ErrStreamActive):
		common.Fail(c, http.StatusConflict, 40901, "a reply is already being generated for this chat")
	case errors.Is(err, chat.ErrUnknownModel):
		common.Fail(c, http.StatusBadRequest, 10005, "unknown chat model")
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

// PostChat admits a user turn and streams the assistant reply as SSE.
func (h *Handler) PostChat(c *gin.Context) {
	name, okk := userNameFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req postChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request body")
		return
	}
	if req.Message.Content == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "message content is required")
		return
	}

	_, sub, err := h.ChatSvc.StreamReply(c.Request.Context(), name, chat.TurnRequest{
		ChatID:      req.ID,
		MessageID:   req.Message.ID,
		Content:     req.Message.Content,
		Parts:       req.Message.Parts,
		Attachments: req.Message.Attachments,
		Model:       req.SelectedChatModel,
		Visibility:  req.SelectedVisibilityType,
		Hints:       requestHints(c),
	})
	if err != nil {
		failChatErr(c, err)
		return
	}
	defer sub.Cancel()

	h.streamEvents(c, sub)
}

// ResumeChat reattaches a client to the most recent stream for a chat, or
// replays the freshly persisted result. 204 when there is nothing to resume.
func (h *Handler) ResumeChat(c *gin.Context) {
	name, okk := userNameFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chatID := c.Query("chatId")
	if chatID == "" {
		common.Fail(c, http.StatusBadRequest, 10003, "chatId is required")
		return
	}

	sub, err := h.ChatSvc.Resume(c.Request.Context(), name, chatID)
	if err != nil {
		failChatErr(c, err)
		return
	}
	if sub == nil {
		c.Status(http.StatusNoContent)
		return
	}
	defer sub.Cancel()

	h.streamEvents(c, sub)
}

// streamEvents writes relay events as SSE until the stream concludes or the
// client goes away. The generation itself is not tied to this connection.
func (h *Handler) streamEvents(c *gin.Context, sub *stream.Subscription) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"flusher not supported\"}\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	// heartbeat keeps proxies from cutting idle generations
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			writeJSON(ev.Type, ev)
			if ev.Terminal() {
				return
			}

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case <-ctx.Done():
			return
		}
	}
}

// DeleteChat hard-deletes a chat after an ownership check and returns the
// deleted record.
func (h *Handler) DeleteChat(c *gin.Context) {
	name, okk := userNameFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	id := c.Query("id")
	if id == "" {
		common.Fail(c, http.StatusNotFound, 40401, "not found")
		return
	}

	deleted, err := h.ChatSvc.DeleteChat(c.Request.Context(), name, id)
	if err != nil {
		failChatErr(c, err)
		return
	}
	common.OK(c, gin.H{"chat": deleted})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	name, okk := userNameFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chatID := c.Param("chat_id")
	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeSeq uint64
	if v := c.Query("before_seq"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeSeq = n
		}
	}

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), name, chatID, limit, beforeSeq)
	if err != nil {
		failChatErr(c, err)
		return
	}

	var nextBeforeSeq uint64
	if len(msgs) > 0 {
		nextBeforeSeq = msgs[len(msgs)-1].Seq
	}
	common.OK(c, gin.H{
		"messages":        msgs,
		"next_before_seq": nextBeforeSeq,
	})
}
