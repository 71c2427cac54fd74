package sink

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/netsecsim/netsec-monitor/pkg/models"
)

const (
	// DefaultSnapshotKey holds the latest snapshot JSON.
	DefaultSnapshotKey = "netsecsim:snapshot:latest"
	// DefaultSnapshotChannel receives every published snapshot.
	DefaultSnapshotChannel = "netsecsim:snapshots"

	snapshotTTL = time.Minute
	publishWait = 2 * time.Second
)

// RedisPublisher mirrors each snapshot into Redis: SET under a well-known
// key for pull-style consumers plus PUBLISH on a channel for push-style
// ones, so detached CLI/status tools read one authoritative state instead
// of re-polling the routers.
type RedisPublisher struct {
	client  *redis.Client
	key     string
	channel string
	errors  uint64
}

// NewRedisPublisher creates a publisher for the given Redis URL.
func NewRedisPublisher(redisURL string) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisPublisher{
		client:  client,
		key:     DefaultSnapshotKey,
		channel: DefaultSnapshotChannel,
	}, nil
}

// OnSnapshot writes the snapshot to Redis. Failures are logged and counted,
// never propagated: a missing Redis degrades consumers, not the monitor.
func (p *RedisPublisher) OnSnapshot(snap models.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("redis publisher: marshal snapshot: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishWait)
	defer cancel()

	if err := p.client.Set(ctx, p.key, payload, snapshotTTL).Err(); err != nil {
		p.logError("set", err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logError("publish", err)
	}
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) logError(op string, err error) {
	p.errors++
	if p.errors%100 == 1 {
		log.Printf("redis publisher: %s failed (%d errors): %v", op, p.errors, err)
	}
}
