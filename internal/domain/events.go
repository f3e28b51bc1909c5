package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client -> server event types.
const (
	EventSendMessage       = "send-message"
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventUserOfflineHint   = "userOffline"
)

// Server -> client event types.
const (
	EventReceiveMessage    = "receive-message"
	EventNewNotification   = "new_notification"
	EventUserOnline        = "user-online"
	EventUserOffline       = "user-offline"
	EventOnlineUsersUpdate = "update-online-users"
	EventError             = "error"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ClientEvent is implemented only by the request types in this file.
type ClientEvent interface {
	clientEvent()
}

type SendMessage struct {
	SenderID   ID     `json:"senderId"`
	ReceiverID ID     `json:"receiverId"`
	Content    string `json:"content"`
}

type JoinConversation struct {
	ConversationID string `json:"conversationId"`
}

type LeaveConversation struct {
	ConversationID string `json:"conversationId"`
}

// UserOfflineHint is an explicit logout from the client.
type UserOfflineHint struct {
	UserID ID `json:"userId"`
}

func (SendMessage) clientEvent()       {}
func (JoinConversation) clientEvent()  {}
func (LeaveConversation) clientEvent() {}
func (UserOfflineHint) clientEvent()   {}

// DecodeClientEvent parses one inbound frame. Every failure wraps
// ErrInvalidPayload.
func DecodeClientEvent(data []byte) (ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame", ErrInvalidPayload)
	}

	var ev ClientEvent
	var err error
	switch env.Type {
	case EventSendMessage:
		var p SendMessage
		err = decodePayload(env.Payload, &p)
		ev = p
	case EventJoinConversation:
		var p JoinConversation
		err = decodePayload(env.Payload, &p)
		ev = p
	case EventLeaveConversation:
		var p LeaveConversation
		err = decodePayload(env.Payload, &p)
		ev = p
	case EventUserOfflineHint:
		var p UserOfflineHint
		err = decodePayload(env.Payload, &p)
		ev = p
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidPayload, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
	}
	return ev, nil
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("payload missing")
	}
	return json.Unmarshal(raw, v)
}

// ServerEvent is implemented only by the event types in this file.
type ServerEvent interface {
	EventType() string
	payload() interface{}
}

type ReceiveMessage struct{ Message Message }

type NewNotification struct{ Notification Notification }

type UserOnline struct {
	UserID string `json:"userId"`
}

type UserOffline struct {
	UserID   string    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

type OnlineUsersUpdate struct{ Snapshot PresenceSnapshot }

// Error reports a rejected request to the session that sent it.
type Error struct{ Reason string }

func (ReceiveMessage) EventType() string    { return EventReceiveMessage }
func (NewNotification) EventType() string   { return EventNewNotification }
func (UserOnline) EventType() string        { return EventUserOnline }
func (UserOffline) EventType() string       { return EventUserOffline }
func (OnlineUsersUpdate) EventType() string { return EventOnlineUsersUpdate }
func (Error) EventType() string             { return EventError }

func (e ReceiveMessage) payload() interface{}    { return e.Message }
func (e NewNotification) payload() interface{}   { return e.Notification }
func (e UserOnline) payload() interface{}        { return e }
func (e UserOffline) payload() interface{}       { return e }
func (e OnlineUsersUpdate) payload() interface{} { return e.Snapshot }
func (e Error) payload() interface{}             { return e.Reason }

// EncodeServerEvent renders ev as a wire frame.
func EncodeServerEvent(ev ServerEvent) ([]byte, error) {
	payload, err := json.Marshal(ev.payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.EventType(), err)
	}
	return json.Marshal(Envelope{Type: ev.EventType(), Payload: payload})
}
