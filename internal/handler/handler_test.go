package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-match-live/internal/conversation"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/internal/gatekeeper"
	"github.com/weiawesome/wes-match-live/internal/hub"
	"github.com/weiawesome/wes-match-live/internal/service"
	"github.com/weiawesome/wes-match-live/pkg/clock"
	"github.com/weiawesome/wes-match-live/pkg/jwt"
	"github.com/weiawesome/wes-match-live/pkg/middleware"
)

type testServer struct {
	*httptest.Server
	jwt *jwt.Manager
	svc service.RealtimeService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := jwt.NewManager("test-secret", "", time.Hour)
	require.NoError(t, err)

	h := hub.NewHub(hub.Config{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
	})
	svc := service.NewRealtimeService(h, conversation.NewMemoryStore(), nil, clock.Real(), service.Config{
		BroadcastDebounce: 20 * time.Millisecond,
	})

	r := gin.New()
	NewWSHandler(h, svc, gatekeeper.New(m)).RegisterRoutes(r)
	NewHTTPHandler(svc, middleware.NewAuthMiddleware(m)).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		h.Stop()
		srv.Close()
	})
	return &testServer{Server: srv, jwt: m, svc: svc}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.jwt.Issue(userID)
	require.NoError(t, err)
	return tok
}

func (s *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?token=" + s.token(t, userID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// next reads frames until one of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) domain.Envelope {
	t.Helper()
	return nextMatching(t, conn, typ, func(json.RawMessage) bool { return true })
}

func nextMatching(t *testing.T, conn *websocket.Conn, typ string, match func(json.RawMessage) bool) domain.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == typ && match(env.Payload) {
			return env
		}
	}
}

func aboutUser(userID string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var p struct {
			UserID string `json:"userId"`
		}
		return json.Unmarshal(raw, &p) == nil && p.UserID == userID
	}
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(domain.Envelope{Type: typ, Payload: raw}))
}

func TestWebSocketRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	base := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	assert.Contains(t, body.String(), "AUTH_MISSING")

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token=forged", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Empty(t, s.svc.Snapshot().Online, "no session is created")
}

func TestWebSocketMessageFlow(t *testing.T) {
	s := newTestServer(t)

	a := s.dial(t, "7")
	next(t, a, domain.EventOnlineUsersUpdate)

	sendFrame(t, a, domain.EventSendMessage, map[string]interface{}{
		"senderId": 7, "receiverId": 12, "content": "hello",
	})
	echo := next(t, a, domain.EventReceiveMessage)
	var sent domain.Message
	require.NoError(t, json.Unmarshal(echo.Payload, &sent))
	assert.Equal(t, "7_12", sent.ConversationKey)

	b := s.dial(t, "12")
	backlog := next(t, b, domain.EventReceiveMessage)
	var got domain.Message
	require.NoError(t, json.Unmarshal(backlog.Payload, &got))
	assert.Equal(t, sent.ID, got.ID)

	online := nextMatching(t, a, domain.EventUserOnline, aboutUser("12"))
	assert.JSONEq(t, `{"userId":"12"}`, string(online.Payload))

	sendFrame(t, b, domain.EventSendMessage, map[string]interface{}{
		"senderId": "12", "receiverId": "7", "content": "hi!",
	})
	reply := next(t, a, domain.EventReceiveMessage)
	require.NoError(t, json.Unmarshal(reply.Payload, &got))
	assert.Equal(t, "hi!", got.Content)

	b.Close()
	offline := nextMatching(t, a, domain.EventUserOffline, aboutUser("12"))
	var off domain.UserOffline
	require.NoError(t, json.Unmarshal(offline.Payload, &off))
	assert.Equal(t, "12", off.UserID)
	assert.False(t, off.LastSeen.IsZero())
}

func TestWebSocketMalformedFrame(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "7")

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{nope")))
	env := next(t, a, domain.EventError)
	assert.Contains(t, string(env.Payload), "invalid payload")
}

func TestOnlineStatus(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "7")
	next(t, a, domain.EventOnlineUsersUpdate)

	for _, path := range []string{"/online-status", "/api/online-status"} {
		resp, err := http.Get(s.URL + path)
		require.NoError(t, err)
		var snap domain.PresenceSnapshot
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []string{"7"}, snap.Online)
	}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestConversationHistoryEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "7")
	for _, text := range []string{"one", "two", "three"} {
		sendFrame(t, a, domain.EventSendMessage, map[string]interface{}{"senderId": "7", "receiverId": "12", "content": text})
		next(t, a, domain.EventReceiveMessage)
	}

	resp := s.do(t, http.MethodGet, "/api/v1/conversations/7/messages?limit=2", "12", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool             `json:"success"`
		Data    MessagesResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	require.Len(t, body.Data.Messages, 2)
	assert.Equal(t, "two", body.Data.Messages[0].Content)
	assert.Equal(t, "three", body.Data.Messages[1].Content)
	require.NotNil(t, body.Data.NextBefore)
	assert.Equal(t, body.Data.Messages[0].ID, body.Data.NextBeforeID)

	q := url.Values{}
	q.Set("limit", "2")
	q.Set("before", body.Data.NextBefore.Format(time.RFC3339Nano))
	q.Set("before_id", body.Data.NextBeforeID)
	resp = s.do(t, http.MethodGet, "/api/v1/conversations/7/messages?"+q.Encode(), "12", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data.Messages, 1, "sends within one millisecond are not skipped")
	assert.Equal(t, "one", body.Data.Messages[0].Content)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/conversations/7/messages", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/conversations/bob/messages", "12", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/conversations/7/messages?limit=-1", "12", nil).StatusCode)
}

func TestCreateNotificationEndpoint(t *testing.T) {
	s := newTestServer(t)

	n := map[string]interface{}{"senderId": 7, "receiverId": 30, "type": "interest_sent", "message": "likes you"}

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/v1/notifications", "8", n).StatusCode)
	assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/v1/notifications", "7", n).StatusCode)

	c := s.dial(t, "30")
	env := next(t, c, domain.EventNewNotification)
	var got domain.Notification
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, "likes you", got.Message)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/notifications", "7", n).StatusCode)
	next(t, c, domain.EventNewNotification)

	padded := map[string]interface{}{"senderId": "007", "receiverId": "030", "type": "interest_sent", "message": "again"}
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/notifications", "7", padded).StatusCode)
	env = next(t, c, domain.EventNewNotification)
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, domain.ID("30"), got.ReceiverID)

	bad := map[string]interface{}{"senderId": 7, "receiverId": 30}
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/notifications", "7", bad).StatusCode)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
