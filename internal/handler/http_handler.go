package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-match-live/internal/conversation"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/internal/service"
	"github.com/weiawesome/wes-match-live/pkg/middleware"
	"github.com/weiawesome/wes-match-live/pkg/response"
)

// HTTPHandler handles the REST surface.
type HTTPHandler struct {
	service service.RealtimeService
	auth    *middleware.AuthMiddleware
}

func NewHTTPHandler(svc service.RealtimeService, auth *middleware.AuthMiddleware) *HTTPHandler {
	return &HTTPHandler{
		service: svc,
		auth:    auth,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/online-status", h.GetOnlineStatus)
	r.GET("/api/online-status", h.GetOnlineStatus)

	api := r.Group("/api/v1", h.auth.RequireAuth())
	{
		api.GET("/conversations/:peer_id/messages", h.GetMessages)
		api.POST("/notifications", h.CreateNotification)
	}

	r.GET("/health", h.HealthCheck)
}

// GetOnlineStatus handles GET /online-status. The body is the bare roster
// snapshot, the same shape as the update-online-users event.
func (h *HTTPHandler) GetOnlineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Snapshot())
}

// MessagesResponse is a page of conversation history, oldest first. Pass
// NextBefore and NextBeforeID back as before and before_id to fetch the
// preceding page.
type MessagesResponse struct {
	Messages     []domain.Message `json:"messages"`
	NextBefore   *time.Time       `json:"next_before,omitempty"`
	NextBeforeID string           `json:"next_before_id,omitempty"`
}

// GetMessages handles GET /api/v1/conversations/:peer_id/messages
func (h *HTTPHandler) GetMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	peerID := c.Param("peer_id")

	cursor := conversation.Cursor{BeforeID: c.Query("before_id")}
	if s := c.Query("before"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			response.BadRequest(c, "before must be an RFC3339 timestamp")
			return
		}
		cursor.Before = t
	}

	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := h.service.History(c.Request.Context(), userID, peerID, cursor, limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPayload) {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServiceUnavailable(c, response.CodePersistenceFailure, "failed to load conversation")
		return
	}

	resp := MessagesResponse{Messages: msgs}
	if msgs == nil {
		resp.Messages = []domain.Message{}
	}
	if len(msgs) > 0 {
		oldest := msgs[0].SentAt
		resp.NextBefore = &oldest
		resp.NextBeforeID = msgs[0].ID
	}
	response.Success(c, resp)
}

// CreateNotification handles POST /api/v1/notifications
func (h *HTTPHandler) CreateNotification(c *gin.Context) {
	var n domain.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		response.BadRequest(c, "invalid notification body")
		return
	}
	senderID, err := conversation.CanonicalUserID(n.SenderID.String())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if callerID, err := conversation.CanonicalUserID(middleware.GetUserID(c)); err != nil || callerID != senderID {
		response.Forbidden(c, "senderId must be the authenticated user")
		return
	}

	delivered, online, err := h.service.DeliverNotification(c.Request.Context(), n)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPayload) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, "failed to deliver notification")
		return
	}

	body := gin.H{"notification": delivered, "delivered": online}
	if online {
		response.Success(c, body)
		return
	}
	response.Accepted(c, body)
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
