package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-match-live/internal/conversation"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/internal/queue"
	"github.com/weiawesome/wes-match-live/pkg/clock"
	pkglog "github.com/weiawesome/wes-match-live/pkg/log"
)

// Router decides between live fan out and offline enqueue for a user.
type Router interface {
	Route(userID string, live func([]domain.Session), offline func()) bool
}

// Fanout delivers notifications to a receiver's live sessions or parks them
// in the receiver's offline queue. It also owns the backlog flush run when a
// session is admitted.
type Fanout struct {
	router        Router
	messages      *queue.Store[domain.Message]
	notifications *queue.Store[domain.Notification]
	clock         clock.Clock
}

func NewFanout(
	router Router,
	messages *queue.Store[domain.Message],
	notifications *queue.Store[domain.Notification],
	clk clock.Clock,
) *Fanout {
	return &Fanout{
		router:        router,
		messages:      messages,
		notifications: notifications,
		clock:         clk,
	}
}

// Deliver hands n to the receiver. It reports whether the receiver was
// online; offline receivers get n queued. Records without an id or creation
// time get one assigned.
func (f *Fanout) Deliver(ctx context.Context, n domain.Notification) (domain.Notification, bool, error) {
	n, err := normalize(n)
	if err != nil {
		return n, false, err
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = f.clock.Now().UTC()
	}

	l := pkglog.Ctx(ctx)
	receiverID := n.ReceiverID.String()
	ev := domain.NewNotification{Notification: n}

	online := f.router.Route(receiverID,
		func(sessions []domain.Session) {
			for _, s := range sessions {
				if err := s.Deliver(ev); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
					l.Debug().Err(err).Str(pkglog.FieldSessionID, s.SessionID()).Msg("notification delivery skipped")
				}
			}
		},
		func() {
			if evicted := f.notifications.Enqueue(receiverID, n); evicted > 0 {
				l.Debug().
					Str(pkglog.FieldUserID, receiverID).
					Int("evicted", evicted).
					Msg("offline notification queue full, dropped oldest")
			}
		},
	)
	return n, online, nil
}

// normalize validates n and rewrites its participant ids to canonical form,
// so the receiver id routes to the same tracker entry and queue its
// sessions are admitted under.
func normalize(n domain.Notification) (domain.Notification, error) {
	senderID, err := conversation.CanonicalUserID(n.SenderID.String())
	if err != nil {
		return n, fmt.Errorf("%w: senderId: %v", domain.ErrInvalidPayload, err)
	}
	receiverID, err := conversation.CanonicalUserID(n.ReceiverID.String())
	if err != nil {
		return n, fmt.Errorf("%w: receiverId: %v", domain.ErrInvalidPayload, err)
	}
	if strings.TrimSpace(n.Type) == "" {
		return n, fmt.Errorf("%w: type is required", domain.ErrInvalidPayload)
	}
	n.SenderID = domain.ID(senderID)
	n.ReceiverID = domain.ID(receiverID)
	return n, nil
}

// Flush drains the owner's message backlog and then notification backlog
// into s, each in enqueue order, and returns how many entries were sent.
// It is meant to run inside presence.Tracker.Admit.
func (f *Fanout) Flush(s domain.Session) int {
	userID := s.OwnerID()
	sent := 0

	for _, m := range f.messages.Drain(userID) {
		if err := s.Deliver(domain.ReceiveMessage{Message: m}); err == nil {
			sent++
		}
	}
	for _, n := range f.notifications.Drain(userID) {
		if err := s.Deliver(domain.NewNotification{Notification: n}); err == nil {
			sent++
		}
	}
	return sent
}
