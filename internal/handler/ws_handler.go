package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-match-live/internal/audit"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/internal/gatekeeper"
	"github.com/weiawesome/wes-match-live/internal/hub"
	"github.com/weiawesome/wes-match-live/internal/service"
	"github.com/weiawesome/wes-match-live/pkg/log"
	"github.com/weiawesome/wes-match-live/pkg/middleware"
	"github.com/weiawesome/wes-match-live/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub        *hub.Hub
	service    service.RealtimeService
	gatekeeper *gatekeeper.Gatekeeper
}

func NewWSHandler(h *hub.Hub, svc service.RealtimeService, gk *gatekeeper.Gatekeeper) *WSHandler {
	return &WSHandler{
		hub:        h,
		service:    svc,
		gatekeeper: gk,
	}
}

// HandleWebSocket authenticates the attempt and only then upgrades it.
// Rejected attempts get a 401 and never reach presence tracking.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	identity, err := h.gatekeeper.Authenticate(c.Request)
	if err != nil {
		code := response.CodeAuthInvalid
		if errors.Is(err, domain.ErrAuthMissing) {
			code = response.CodeAuthMissing
		}
		audit.LogWithDetail(c.Request.Context(), audit.ActionAuthFailed, "", code, "connection rejected")
		response.Unauthorized(c, code, err.Error())
		return
	}
	c.Set(middleware.UserIDKey, identity.UserID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), identity.UserID, h.hub, conn, h.hub.Config())
	// The connection outlives the upgrade request, so keep its logger but
	// not its cancellation.
	base := log.WithLogger(context.Background(), log.Ctx(c.Request.Context()))
	ctx := log.WithSession(base, client.UserID, client.ID)

	if err := h.service.HandleConnect(ctx, client); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to admit client")
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(
		func(cl *hub.Client, message []byte) { h.handleMessage(ctx, cl, message) },
		func(cl *hub.Client) { h.service.HandleDisconnect(ctx, cl) },
	)
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	ev, err := domain.DecodeClientEvent(message)
	if err != nil {
		client.Deliver(domain.Error{Reason: err.Error()})
		return
	}

	if err := h.service.HandleEvent(ctx, client, ev); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("client event rejected")
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
}
