package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Presence.BroadcastDebounce)
	assert.Equal(t, 50, cfg.Presence.OfflineQueueCapacity)
	assert.Equal(t, 4000, cfg.Delivery.MaxContentLength)
	assert.Equal(t, "memory", cfg.Conversation.Driver)
	assert.Equal(t, 3306, cfg.Conversation.Database.Port)
	assert.Equal(t, []string{"localhost"}, cfg.Conversation.Cassandra.Hosts)
	assert.Equal(t, 2*time.Second, cfg.Conversation.Cassandra.Timeout)
	assert.Equal(t, "relationship-notifications", cfg.Kafka.Topic)
	assert.Equal(t, "presence:last_seen", cfg.Redis.LastSeenKey)
	assert.Equal(t, "match-live", cfg.Log.ServiceName)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9100")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CONVERSATION_DRIVER", "cassandra")
	t.Setenv("CASSANDRA_HOSTS", "c1,c2")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("PRESENCE_BROADCAST_DEBOUNCE", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "cassandra", cfg.Conversation.Driver)
	assert.Equal(t, []string{"c1", "c2"}, cfg.Conversation.Cassandra.Hosts)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Second, cfg.Presence.BroadcastDebounce)
}
