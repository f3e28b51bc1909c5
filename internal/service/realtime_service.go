package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-match-live/internal/audit"
	"github.com/weiawesome/wes-match-live/internal/conversation"
	"github.com/weiawesome/wes-match-live/internal/debounce"
	"github.com/weiawesome/wes-match-live/internal/delivery"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/internal/hub"
	"github.com/weiawesome/wes-match-live/internal/notify"
	"github.com/weiawesome/wes-match-live/internal/presence"
	"github.com/weiawesome/wes-match-live/internal/queue"
	"github.com/weiawesome/wes-match-live/internal/store"
	"github.com/weiawesome/wes-match-live/pkg/clock"
	pkglog "github.com/weiawesome/wes-match-live/pkg/log"
)

const storeTimeout = 5 * time.Second

// Config holds service tunables.
type Config struct {
	BroadcastDebounce    time.Duration
	OfflineQueueCapacity int
	HistoryReplayLimit   int
	MaxContentLength     int
}

type realtimeService struct {
	hub       *hub.Hub
	tracker   *presence.Tracker
	pipeline  *delivery.Pipeline
	fanout    *notify.Fanout
	debouncer *debounce.Debouncer
	presence  store.PresenceStore // nil when Redis is disabled
	clock     clock.Clock
	cfg       Config
}

// NewRealtimeService wires the presence tracker, offline queues, delivery
// pipeline, notification fanout and debouncer around h. presenceStore may
// be nil.
func NewRealtimeService(
	h *hub.Hub,
	conversations conversation.Store,
	presenceStore store.PresenceStore,
	clk clock.Clock,
	cfg Config,
) RealtimeService {
	if cfg.HistoryReplayLimit <= 0 {
		cfg.HistoryReplayLimit = delivery.DefaultHistoryLimit
	}

	tracker := presence.NewTracker(clk)
	messages := queue.NewStore[domain.Message](cfg.OfflineQueueCapacity)
	notifications := queue.NewStore[domain.Notification](cfg.OfflineQueueCapacity)

	s := &realtimeService{
		hub:     h,
		tracker: tracker,
		pipeline: delivery.NewPipeline(conversations, tracker, h, messages, clk, delivery.Config{
			MaxContentLength: cfg.MaxContentLength,
		}),
		fanout:   notify.NewFanout(tracker, messages, notifications, clk),
		presence: presenceStore,
		clock:    clk,
		cfg:      cfg,
	}
	s.debouncer = debounce.New(clk, cfg.BroadcastDebounce, s.broadcastSnapshot)
	tracker.AddObserver(s)
	return s
}

func (s *realtimeService) HandleConnect(ctx context.Context, c *hub.Client) error {
	s.hub.Register(c)

	flushed := 0
	s.tracker.Admit(c, func(sess domain.Session) {
		flushed = s.fanout.Flush(sess)
	})

	// Late joiners get the roster straight away rather than waiting for
	// the next transition.
	c.Deliver(domain.OnlineUsersUpdate{Snapshot: s.tracker.Snapshot()})

	audit.LogWithDetail(ctx, audit.ActionConnect, c.UserID, fmt.Sprintf("flushed=%d", flushed), "client connected")
	return nil
}

func (s *realtimeService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	s.tracker.RemoveSession(c.UserID, c.ID)
	audit.Log(ctx, audit.ActionDisconnect, c.UserID, "client disconnected")
}

func (s *realtimeService) HandleEvent(ctx context.Context, c *hub.Client, ev domain.ClientEvent) error {
	// Frames read after a logout hint are dropped.
	if c.Closed() {
		return domain.ErrSessionClosed
	}
	switch e := ev.(type) {
	case domain.SendMessage:
		return s.handleSendMessage(ctx, c, e)
	case domain.JoinConversation:
		return s.handleJoinConversation(ctx, c, e.ConversationID)
	case domain.LeaveConversation:
		s.hub.LeaveConversation(c, e.ConversationID)
		audit.LogWithTarget(ctx, audit.ActionLeaveConversation, c.UserID, e.ConversationID, "left conversation")
		return nil
	case domain.UserOfflineHint:
		return s.handleLogout(ctx, c, e)
	default:
		return s.reject(c, fmt.Errorf("%w: unsupported event", domain.ErrInvalidPayload))
	}
}

func (s *realtimeService) handleSendMessage(ctx context.Context, c *hub.Client, req domain.SendMessage) error {
	msg, err := s.pipeline.Send(ctx, c.UserID, req)
	if err != nil {
		return s.reject(c, err)
	}
	l := pkglog.Ctx(ctx)
	l.Debug().
		Str(pkglog.FieldMessageID, msg.ID).
		Str(pkglog.FieldConversation, msg.ConversationKey).
		Msg("message delivered")
	audit.LogWithTarget(ctx, audit.ActionSendMessage, c.UserID, msg.ConversationKey, "message sent")
	return nil
}

func (s *realtimeService) handleJoinConversation(ctx context.Context, c *hub.Client, key string) error {
	if !conversation.Includes(key, c.UserID) {
		return s.reject(c, fmt.Errorf("%w: not a participant of conversation %q", domain.ErrInvalidPayload, key))
	}

	history, err := s.pipeline.HistoryByKey(ctx, key, conversation.Cursor{}, s.cfg.HistoryReplayLimit)
	if err != nil {
		return s.reject(c, err)
	}

	s.hub.JoinConversation(c, key)
	for _, m := range history {
		if err := c.Deliver(domain.ReceiveMessage{Message: m}); err != nil {
			break
		}
	}

	audit.LogWithTarget(ctx, audit.ActionJoinConversation, c.UserID, key, "joined conversation")
	return nil
}

func (s *realtimeService) handleLogout(ctx context.Context, c *hub.Client, hint domain.UserOfflineHint) error {
	if userID, err := conversation.CanonicalUserID(hint.UserID.String()); err != nil || userID != c.UserID {
		return s.reject(c, fmt.Errorf("%w: userId does not match the session user", domain.ErrInvalidPayload))
	}
	s.tracker.RemoveSession(c.UserID, c.ID)
	// Detach the session from broadcasts and subscriptions and close the
	// socket. The disconnect that follows finds nothing left to remove.
	s.hub.Unregister(c)
	audit.Log(ctx, audit.ActionLogout, c.UserID, "client logged out")
	return nil
}

// reject reports err to the originating session only.
func (s *realtimeService) reject(c *hub.Client, err error) error {
	c.Deliver(domain.Error{Reason: errorReason(err)})
	return err
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload):
		return err.Error()
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "message could not be saved, please retry"
	default:
		return "internal error"
	}
}

func (s *realtimeService) Snapshot() domain.PresenceSnapshot {
	return s.tracker.Snapshot()
}

func (s *realtimeService) History(ctx context.Context, userID, peerID string, cursor conversation.Cursor, limit int) ([]domain.Message, error) {
	return s.pipeline.History(ctx, userID, peerID, cursor, limit)
}

func (s *realtimeService) DeliverNotification(ctx context.Context, n domain.Notification) (domain.Notification, bool, error) {
	delivered, online, err := s.fanout.Deliver(ctx, n)
	if err != nil {
		return delivered, false, err
	}
	detail := "queued"
	if online {
		detail = "live"
	}
	audit.LogWithDetail(ctx, audit.ActionNotify, delivered.ReceiverID.String(), detail, "notification delivered")
	return delivered, online, nil
}

func (s *realtimeService) HandleNotification(ctx context.Context, n *domain.Notification) error {
	_, _, err := s.DeliverNotification(ctx, *n)
	return err
}

// UserOnline implements presence.Observer. Runs under the tracker lock.
func (s *realtimeService) UserOnline(userID string) {
	s.hub.Broadcast(domain.UserOnline{UserID: userID})
	s.debouncer.Schedule()
	s.publish(domain.PresenceUpdate{UserID: userID, Online: true})
}

// UserOffline implements presence.Observer. Runs under the tracker lock.
func (s *realtimeService) UserOffline(userID string, lastSeen time.Time) {
	s.hub.Broadcast(domain.UserOffline{UserID: userID, LastSeen: lastSeen})
	s.debouncer.Schedule()
	s.publish(domain.PresenceUpdate{UserID: userID, LastSeen: &lastSeen})
}

func (s *realtimeService) publish(update domain.PresenceUpdate) {
	if s.presence == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.presence.PublishPresence(ctx, update); err != nil {
			l := pkglog.L()
			l.Warn().Err(err).Str(pkglog.FieldUserID, update.UserID).Msg("failed to publish presence update")
		}
	}()
}

func (s *realtimeService) broadcastSnapshot() {
	if err := s.hub.Broadcast(domain.OnlineUsersUpdate{Snapshot: s.tracker.Snapshot()}); err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("failed to broadcast online users")
	}
}

func (s *realtimeService) Start(ctx context.Context) error {
	if s.presence == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	lastSeen, err := s.presence.LoadLastSeen(ctx)
	if err != nil {
		return fmt.Errorf("failed to load last seen: %w", err)
	}
	restored := s.tracker.RestoreLastSeen(lastSeen)

	l := pkglog.Ctx(ctx)
	l.Info().Int("restored", restored).Msg("last seen restored")
	return nil
}

func (s *realtimeService) Stop() error {
	s.debouncer.Stop()
	if s.presence == nil {
		return nil
	}

	// Users still connected are about to be cut off by the shutdown.
	snap := s.tracker.Snapshot()
	now := s.clock.Now().UTC()
	for _, userID := range snap.Online {
		snap.LastSeen[userID] = now
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.presence.SaveLastSeen(ctx, snap.LastSeen); err != nil {
		return fmt.Errorf("failed to save last seen: %w", err)
	}
	return nil
}
