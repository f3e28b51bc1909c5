package delivery

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-match-live/internal/conversation"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/internal/queue"
	"github.com/weiawesome/wes-match-live/pkg/clock"
	pkglog "github.com/weiawesome/wes-match-live/pkg/log"
)

const (
	DefaultMaxContentLength = 4000
	DefaultHistoryLimit     = 50
	MaxHistoryLimit         = 100

	lockStripes = 64
)

// Router decides between live fan out and offline enqueue for a user.
// *presence.Tracker implements it.
type Router interface {
	Route(userID string, live func([]domain.Session), offline func()) bool
}

// SubscriberLookup returns sessions that opted into a conversation view.
// *hub.Hub implements it.
type SubscriberLookup interface {
	Subscribers(conversationKey string) []domain.Session
}

// Config holds pipeline limits.
type Config struct {
	MaxContentLength int
}

// Pipeline validates, persists and fans out chat messages.
type Pipeline struct {
	store       conversation.Store
	router      Router
	subscribers SubscriberLookup
	offline     *queue.Store[domain.Message]
	clock       clock.Clock
	maxContent  int
	newID       func() string

	locks [lockStripes]sync.Mutex
}

// NewPipeline creates a pipeline. subscribers may be nil.
func NewPipeline(
	store conversation.Store,
	router Router,
	subscribers SubscriberLookup,
	offline *queue.Store[domain.Message],
	clk clock.Clock,
	cfg Config,
) *Pipeline {
	maxContent := cfg.MaxContentLength
	if maxContent <= 0 {
		maxContent = DefaultMaxContentLength
	}
	return &Pipeline{
		store:       store,
		router:      router,
		subscribers: subscribers,
		offline:     offline,
		clock:       clk,
		maxContent:  maxContent,
		newID:       newMessageID,
	}
}

// newMessageID returns a time-ordered id. Ids generated by one process are
// strictly increasing, which stores use to order messages that share a
// timestamp.
func newMessageID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Send delivers req on behalf of actorID, the authenticated owner of the
// originating session. Validation failures wrap domain.ErrInvalidPayload
// and store failures wrap domain.ErrPersistenceFailure; in both cases
// nothing is delivered or queued.
func (p *Pipeline) Send(ctx context.Context, actorID string, req domain.SendMessage) (domain.Message, error) {
	senderID, receiverID, err := canonicalPair(req.SenderID, req.ReceiverID)
	if err != nil {
		return domain.Message{}, err
	}
	if err := p.validate(actorID, senderID, receiverID, req.Content); err != nil {
		return domain.Message{}, err
	}
	key, err := conversation.Key(senderID, receiverID)
	if err != nil {
		return domain.Message{}, err
	}

	// Append and fan out in one critical section per conversation so that
	// store order and delivery order agree.
	mu := p.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	msg := domain.Message{
		ID:              p.newID(),
		ConversationKey: key,
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Content:         req.Content,
		SentAt:          p.clock.Now().UTC().Truncate(time.Millisecond),
	}

	if err := p.store.Append(ctx, msg); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}

	p.fanOut(ctx, msg)
	return msg, nil
}

// canonicalPair normalizes both participant ids so that routing, queue keys
// and the stored message all use the same spelling of each user.
func canonicalPair(sender, receiver domain.ID) (string, string, error) {
	if strings.TrimSpace(sender.String()) == "" || strings.TrimSpace(receiver.String()) == "" {
		return "", "", fmt.Errorf("%w: senderId and receiverId are required", domain.ErrInvalidPayload)
	}
	senderID, err := conversation.CanonicalUserID(sender.String())
	if err != nil {
		return "", "", err
	}
	receiverID, err := conversation.CanonicalUserID(receiver.String())
	if err != nil {
		return "", "", err
	}
	return senderID, receiverID, nil
}

func (p *Pipeline) validate(actorID, senderID, receiverID, content string) error {
	if actor, err := conversation.CanonicalUserID(actorID); err != nil || senderID != actor {
		return fmt.Errorf("%w: senderId does not match the session user", domain.ErrInvalidPayload)
	}
	if senderID == receiverID {
		return fmt.Errorf("%w: cannot send a message to yourself", domain.ErrInvalidPayload)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is empty", domain.ErrInvalidPayload)
	}
	if len(content) > p.maxContent {
		return fmt.Errorf("%w: content exceeds %d bytes", domain.ErrInvalidPayload, p.maxContent)
	}
	return nil
}

// fanOut sends msg to every live session of both participants and to the
// conversation's subscribers, each session at most once. Offline
// participants get the message queued.
func (p *Pipeline) fanOut(ctx context.Context, msg domain.Message) {
	l := pkglog.Ctx(ctx)
	ev := domain.ReceiveMessage{Message: msg}
	delivered := make(map[string]struct{})

	deliver := func(s domain.Session) {
		if _, seen := delivered[s.SessionID()]; seen {
			return
		}
		delivered[s.SessionID()] = struct{}{}
		if err := s.Deliver(ev); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
			l.Debug().Err(err).Str(pkglog.FieldSessionID, s.SessionID()).Msg("message delivery skipped")
		}
	}

	for _, userID := range []string{msg.SenderID, msg.ReceiverID} {
		p.router.Route(userID,
			func(sessions []domain.Session) {
				for _, s := range sessions {
					deliver(s)
				}
			},
			func() {
				if evicted := p.offline.Enqueue(userID, msg); evicted > 0 {
					l.Debug().
						Str(pkglog.FieldUserID, userID).
						Int("evicted", evicted).
						Msg("offline message queue full, dropped oldest")
				}
			},
		)
	}

	if p.subscribers != nil {
		for _, s := range p.subscribers.Subscribers(msg.ConversationKey) {
			deliver(s)
		}
	}
}

// History returns a page of the conversation between userID and peerID,
// oldest first. limit is clamped to [1, MaxHistoryLimit].
func (p *Pipeline) History(ctx context.Context, userID, peerID string, cursor conversation.Cursor, limit int) ([]domain.Message, error) {
	key, err := conversation.Key(userID, peerID)
	if err != nil {
		return nil, err
	}
	return p.HistoryByKey(ctx, key, cursor, limit)
}

// HistoryByKey is History for an already canonical key.
func (p *Pipeline) HistoryByKey(ctx context.Context, key string, cursor conversation.Cursor, limit int) ([]domain.Message, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	msgs, err := p.store.History(ctx, key, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	return msgs, nil
}

func (p *Pipeline) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &p.locks[h.Sum32()%lockStripes]
}
