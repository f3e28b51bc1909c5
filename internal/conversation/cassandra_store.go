package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/weiawesome/wes-match-live/internal/domain"
)

// CassandraConfig holds Cassandra connection configuration.
type CassandraConfig struct {
	Hosts          []string      `mapstructure:"hosts"`
	Keyspace       string        `mapstructure:"keyspace"`
	Consistency    string        `mapstructure:"consistency"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
	NumConns       int           `mapstructure:"num_conns"`
}

// Schema of the backing table. Message ids are time-ordered (uuid v7), so
// (sent_at, message_id) sorts messages sharing a millisecond in send order.
//
//	CREATE TABLE messages_by_conversation (
//	    conversation_key text,
//	    sent_at          timestamp,
//	    message_id       text,
//	    sender_id        text,
//	    receiver_id      text,
//	    content          text,
//	    PRIMARY KEY ((conversation_key), sent_at, message_id)
//	) WITH CLUSTERING ORDER BY (sent_at DESC, message_id DESC);
const (
	insertMessageCQL = `INSERT INTO messages_by_conversation (
		conversation_key, sent_at, message_id, sender_id, receiver_id, content
	) VALUES (?, ?, ?, ?, ?, ?)`

	selectLatestCQL = `SELECT message_id, conversation_key, sender_id, receiver_id, content, sent_at
		FROM messages_by_conversation
		WHERE conversation_key = ?
		LIMIT ?`

	selectBeforeCQL = `SELECT message_id, conversation_key, sender_id, receiver_id, content, sent_at
		FROM messages_by_conversation
		WHERE conversation_key = ? AND sent_at < ?
		LIMIT ?`

	selectBeforeMessageCQL = `SELECT message_id, conversation_key, sender_id, receiver_id, content, sent_at
		FROM messages_by_conversation
		WHERE conversation_key = ? AND (sent_at, message_id) < (?, ?)
		LIMIT ?`
)

// CassandraStore keeps conversations in a wide-row Cassandra table.
type CassandraStore struct {
	session *gocql.Session
}

// NewCassandraStore opens a session against cfg.
func NewCassandraStore(cfg CassandraConfig) (*CassandraStore, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	if cfg.ConnectTimeout > 0 {
		cluster.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}
	return &CassandraStore{session: session}, nil
}

func (s *CassandraStore) Append(ctx context.Context, msg domain.Message) error {
	err := s.session.Query(insertMessageCQL,
		msg.ConversationKey,
		msg.SentAt.UTC(),
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// History pages by (sent_at, message_id). A cursor with BeforeID must also
// carry that message's Before timestamp.
func (s *CassandraStore) History(ctx context.Context, key string, cursor Cursor, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	var q *gocql.Query
	switch {
	case cursor.BeforeID != "" && !cursor.Before.IsZero():
		q = s.session.Query(selectBeforeMessageCQL, key, cursor.Before.UTC(), cursor.BeforeID, limit)
	case !cursor.Before.IsZero():
		q = s.session.Query(selectBeforeCQL, key, cursor.Before.UTC(), limit)
	default:
		q = s.session.Query(selectLatestCQL, key, limit)
	}
	iter := q.WithContext(ctx).Iter()

	var newestFirst []domain.Message
	var msg domain.Message
	for iter.Scan(&msg.ID, &msg.ConversationKey, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.SentAt) {
		msg.SentAt = msg.SentAt.UTC()
		newestFirst = append(newestFirst, msg)
		msg = domain.Message{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	out := make([]domain.Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(newestFirst)-1-i] = m
	}
	return out, nil
}

func (s *CassandraStore) Close() error {
	s.session.Close()
	return nil
}

func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ONE":
		return gocql.One
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_ONE":
		return gocql.LocalOne
	case "EACH_QUORUM":
		return gocql.EachQuorum
	default:
		return gocql.LocalQuorum
	}
}
