package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/internal/domain/domaintest"
	"github.com/weiawesome/wes-match-live/internal/presence"
	"github.com/weiawesome/wes-match-live/internal/queue"
	"github.com/weiawesome/wes-match-live/pkg/clock"
)

type fixture struct {
	fanout        *Fanout
	tracker       *presence.Tracker
	messages      *queue.Store[domain.Message]
	notifications *queue.Store[domain.Notification]
}

func newFixture() *fixture {
	clk := clock.NewFake(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	tr := presence.NewTracker(clk)
	msgs := queue.NewStore[domain.Message](queue.DefaultCapacity)
	notifs := queue.NewStore[domain.Notification](queue.DefaultCapacity)
	return &fixture{
		fanout:        NewFanout(tr, msgs, notifs, clk),
		tracker:       tr,
		messages:      msgs,
		notifications: notifs,
	}
}

func interest(i int) domain.Notification {
	return domain.Notification{
		ID:         fmt.Sprintf("n%d", i),
		SenderID:   "7",
		ReceiverID: "30",
		Type:       "interest_sent",
		Message:    fmt.Sprintf("interest #%d", i),
	}
}

func TestFiftyOneNotificationsForOfflineUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 1; i <= 51; i++ {
		_, online, err := f.fanout.Deliver(ctx, interest(i))
		require.NoError(t, err)
		assert.False(t, online)
	}

	c1 := domaintest.NewSession("30", "c1")
	f.tracker.Admit(c1, func(s domain.Session) { f.fanout.Flush(s) })

	got := c1.Notifications()
	require.Len(t, got, 50)
	assert.Equal(t, "n2", got[0].ID, "oldest of the 51 is gone")
	for i, n := range got {
		assert.Equal(t, fmt.Sprintf("n%d", i+2), n.ID)
	}
	assert.Zero(t, f.notifications.Len("30"))

	c2 := domaintest.NewSession("30", "c2")
	f.tracker.Admit(c2, func(s domain.Session) { f.fanout.Flush(s) })
	assert.Empty(t, c2.Events(), "backlog is delivered exactly once")
}

func TestDeliverLiveToEverySession(t *testing.T) {
	f := newFixture()
	c1 := domaintest.NewSession("30", "c1")
	c2 := domaintest.NewSession("30", "c2")
	f.tracker.RegisterSession(c1)
	f.tracker.RegisterSession(c2)

	n, online, err := f.fanout.Deliver(context.Background(), domain.Notification{
		SenderID: "7", ReceiverID: "30", Type: "interest_accepted",
	})
	require.NoError(t, err)
	assert.True(t, online)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())

	assert.Equal(t, []domain.Notification{n}, c1.Notifications())
	assert.Equal(t, []domain.Notification{n}, c2.Notifications())
	assert.Zero(t, f.notifications.Len("30"))
}

func TestFlushOrdersMessagesBeforeNotifications(t *testing.T) {
	f := newFixture()
	f.notifications.Enqueue("30", interest(1))
	f.messages.Enqueue("30", domain.Message{ID: "m1"})
	f.messages.Enqueue("30", domain.Message{ID: "m2"})

	s := domaintest.NewSession("30", "c1")
	assert.Equal(t, 3, f.fanout.Flush(s))

	events := s.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "m1", events[0].(domain.ReceiveMessage).Message.ID)
	assert.Equal(t, "m2", events[1].(domain.ReceiveMessage).Message.ID)
	assert.Equal(t, "n1", events[2].(domain.NewNotification).Notification.ID)
}

func TestDeliverRejectsInvalid(t *testing.T) {
	f := newFixture()
	for _, n := range []domain.Notification{
		{SenderID: "7", Type: "x"},
		{ReceiverID: "30", Type: "x"},
		{SenderID: "7", ReceiverID: "30"},
		{SenderID: "abc", ReceiverID: "30", Type: "x"},
	} {
		_, _, err := f.fanout.Deliver(context.Background(), n)
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	}
	assert.Zero(t, f.notifications.Len("30"))
}

func TestDeliverIgnoresClosedSession(t *testing.T) {
	f := newFixture()
	c1 := domaintest.NewSession("30", "c1")
	f.tracker.RegisterSession(c1)
	c1.Close()

	_, online, err := f.fanout.Deliver(context.Background(), interest(1))
	require.NoError(t, err)
	assert.True(t, online)
}

func TestDeliverRoutesPaddedReceiverToCanonicalUser(t *testing.T) {
	f := newFixture()
	c1 := domaintest.NewSession("30", "c1")
	f.tracker.RegisterSession(c1)

	n, online, err := f.fanout.Deliver(context.Background(), domain.Notification{
		SenderID: " 7", ReceiverID: "030", Type: "interest_sent",
	})
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, domain.ID("7"), n.SenderID)
	assert.Equal(t, domain.ID("30"), n.ReceiverID)
	assert.Equal(t, []domain.Notification{n}, c1.Notifications())
	assert.Zero(t, f.notifications.Len("030"))
}
