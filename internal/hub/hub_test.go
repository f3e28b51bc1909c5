package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/pkg/clock"
)

func newTestClient(h *Hub, id, userID string) *Client {
	return NewClient(id, userID, h, nil, h.Config())
}

func readFrame(t *testing.T, c *Client) domain.Envelope {
	t.Helper()
	select {
	case data := <-c.Send:
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	default:
		t.Fatalf("no frame queued for %s", c.ID)
		return domain.Envelope{}
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	h := NewHub(Config{SendBuffer: 4})
	a := newTestClient(h, "a", "7")
	b := newTestClient(h, "b", "12")
	h.Register(a)
	h.Register(b)

	require.NoError(t, h.Broadcast(domain.UserOnline{UserID: "7"}))

	assert.Equal(t, domain.EventUserOnline, readFrame(t, a).Type)
	assert.Equal(t, domain.EventUserOnline, readFrame(t, b).Type)
}

func TestSubscriptions(t *testing.T) {
	h := NewHub(Config{})
	a := newTestClient(h, "a", "7")
	b := newTestClient(h, "b", "12")
	stranger := newTestClient(h, "z", "99")
	h.Register(a)
	h.Register(b)

	h.JoinConversation(b, "7_12")
	h.JoinConversation(a, "7_12")
	h.JoinConversation(stranger, "7_12")

	subs := h.Subscribers("7_12")
	require.Len(t, subs, 2, "unregistered clients cannot subscribe")
	assert.Equal(t, "a", subs[0].SessionID())
	assert.Equal(t, "b", subs[1].SessionID())

	h.LeaveConversation(a, "7_12")
	assert.Len(t, h.Subscribers("7_12"), 1)

	h.Unregister(b)
	assert.Empty(t, h.Subscribers("7_12"))
	assert.Equal(t, 1, h.ClientCount())
}

func TestDeliverAfterUnregister(t *testing.T) {
	h := NewHub(Config{})
	a := newTestClient(h, "a", "7")
	h.Register(a)
	h.Unregister(a)
	h.Unregister(a)

	err := a.Deliver(domain.UserOnline{UserID: "12"})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestDeliverFullBuffer(t *testing.T) {
	h := NewHub(Config{SendBuffer: 1})
	a := newTestClient(h, "a", "7")
	h.Register(a)

	require.NoError(t, a.Deliver(domain.UserOnline{UserID: "12"}))
	assert.ErrorIs(t, a.Deliver(domain.UserOnline{UserID: "13"}), domain.ErrSessionClosed)
}

func TestClientConnectedAtUsesConfiguredClock(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 5, 5, 9, 30, 0, 0, time.UTC))
	h := NewHub(Config{Clock: clk})

	a := newTestClient(h, "a", "7")
	assert.Equal(t, clk.Now(), a.ConnectedAt)
	assert.False(t, a.Closed())

	h.Register(a)
	h.Unregister(a)
	assert.True(t, a.Closed())
}
