package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/pkg/database"
	"gorm.io/gorm"
)

// messageRecord is the row layout of the messages table. Seq is the append
// order; several messages may share one SentAt.
type messageRecord struct {
	Seq             uint64    `gorm:"primaryKey;autoIncrement;index:idx_messages_conversation_seq,priority:2"`
	ID              string    `gorm:"size:36;not null;uniqueIndex"`
	ConversationKey string    `gorm:"size:64;not null;index:idx_messages_conversation_seq,priority:1"`
	SenderID        string    `gorm:"size:32;not null"`
	ReceiverID      string    `gorm:"size:32;not null"`
	Content         string    `gorm:"type:text;not null"`
	SentAt          time.Time `gorm:"not null"`
}

func (messageRecord) TableName() string { return "messages" }

func toRecord(m domain.Message) messageRecord {
	return messageRecord{
		ID:              m.ID,
		ConversationKey: m.ConversationKey,
		SenderID:        m.SenderID,
		ReceiverID:      m.ReceiverID,
		Content:         m.Content,
		SentAt:          m.SentAt.UTC(),
	}
}

func (r messageRecord) toDomain() domain.Message {
	return domain.Message{
		ID:              r.ID,
		ConversationKey: r.ConversationKey,
		SenderID:        r.SenderID,
		ReceiverID:      r.ReceiverID,
		Content:         r.Content,
		SentAt:          r.SentAt.UTC(),
	}
}

// GormStore keeps conversations in a relational database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the messages table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate messages table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Append(ctx context.Context, msg domain.Message) error {
	rec := toRecord(msg)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *GormStore) History(ctx context.Context, key string, cursor Cursor, limit int) ([]domain.Message, error) {
	db := s.db.WithContext(ctx)
	q := db.Where("conversation_key = ?", key)

	bounded := false
	if cursor.BeforeID != "" {
		var bound messageRecord
		err := db.Select("seq").
			Where("conversation_key = ? AND id = ?", key, cursor.BeforeID).
			Take(&bound).Error
		switch {
		case err == nil:
			q = q.Where("seq < ?", bound.Seq)
			bounded = true
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to resolve cursor: %w", err)
		}
	}
	if !bounded && !cursor.Before.IsZero() {
		q = q.Where("sent_at < ?", cursor.Before.UTC())
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []messageRecord
	if err := q.Order("seq DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	out := make([]domain.Message, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r.toDomain()
	}
	return out, nil
}

func (s *GormStore) Close() error {
	return database.Close(s.db)
}
