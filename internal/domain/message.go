package domain

import "time"

// Message is one immutable entry of a two-party conversation.
type Message struct {
	ID              string    `json:"id"`
	ConversationKey string    `json:"conversationKey"`
	SenderID        string    `json:"senderId"`
	ReceiverID      string    `json:"receiverId"`
	Content         string    `json:"content"`
	SentAt          time.Time `json:"sentAt"`
}

// Notification is a relationship-request or match event created by an
// external collaborator and handed to the service for delivery only.
type Notification struct {
	ID                string    `json:"id"`
	SenderID          ID        `json:"senderId"`
	SenderProfileID   ID        `json:"senderProfileId,omitempty"`
	ReceiverID        ID        `json:"receiverId"`
	ReceiverProfileID ID        `json:"receiverProfileId,omitempty"`
	Type              string    `json:"type"`
	Message           string    `json:"message"`
	CreatedAt         time.Time `json:"createdAt"`
	IsRead            bool      `json:"isRead"`
}
