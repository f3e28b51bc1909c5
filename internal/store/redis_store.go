package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-match-live/internal/domain"
	pkglog "github.com/weiawesome/wes-match-live/pkg/log"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	LastSeenKey   string // hash of user_id -> RFC3339Nano (e.g. presence:last_seen)
	PubSubChannel string // channel for presence transitions (e.g. presence:user_updates)
	InstanceID    string // optional, for origin_instance_id in pub payload
}

// redisStore implements PresenceStore using Redis.
type redisStore struct {
	client        *redis.Client
	lastSeenKey   string
	pubSubChannel string
	instanceID    string
}

// NewRedisStore connects to Redis and returns the store.
func NewRedisStore(cfg RedisConfig) (PresenceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, cfg), nil
}

func newRedisStore(client *redis.Client, cfg RedisConfig) *redisStore {
	key := cfg.LastSeenKey
	if key == "" {
		key = "presence:last_seen"
	}
	channel := cfg.PubSubChannel
	if channel == "" {
		channel = "presence:user_updates"
	}
	return &redisStore{
		client:        client,
		lastSeenKey:   key,
		pubSubChannel: channel,
		instanceID:    cfg.InstanceID,
	}
}

func (s *redisStore) SaveLastSeen(ctx context.Context, lastSeen map[string]time.Time) error {
	if len(lastSeen) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(lastSeen))
	for userID, ts := range lastSeen {
		fields[userID] = ts.UTC().Format(time.RFC3339Nano)
	}
	return s.client.HSet(ctx, s.lastSeenKey, fields).Err()
}

func (s *redisStore) LoadLastSeen(ctx context.Context) (map[string]time.Time, error) {
	raw, err := s.client.HGetAll(ctx, s.lastSeenKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]time.Time, len(raw))
	for userID, v := range raw {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			l := pkglog.Ctx(ctx)
			l.Warn().Str(pkglog.FieldUserID, userID).Str("value", v).Msg("skipping unparsable last seen entry")
			continue
		}
		out[userID] = ts
	}
	return out, nil
}

func (s *redisStore) PublishPresence(ctx context.Context, update domain.PresenceUpdate) error {
	update.OriginInstanceID = s.instanceID
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.pubSubChannel, string(data)).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
