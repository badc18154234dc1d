package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/parts-ledger/internal/core/domain"
	"github.com/rl1809/parts-ledger/internal/port"
)

const (
	stockKeyPrefix     = "stock:"
	stockChangeChannel = "stock.changes"
)

// RedisNotifier keeps a read-only mirror of committed quantities and fans
// changes out over pub/sub so UI consumers can refresh without watching the
// ledger. The mirror is not authoritative; the ledger adapters are.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func stockKey(componentID, locationID string) string {
	return stockKeyPrefix + componentID + ":" + locationID
}

// StockChanged mirrors the committed quantities and publishes one change
// event for the whole batch.
func (r *RedisNotifier) StockChanged(ctx context.Context, changes []domain.StockChange) error {
	if len(changes) == 0 {
		return nil
	}

	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, ch := range changes {
		pipe.Set(ctx, stockKey(ch.ComponentID, ch.LocationID), ch.Quantity, 0)
	}
	pipe.Publish(ctx, stockChangeChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish stock changes: %w", err)
	}
	return nil
}

// MirroredStock reads the mirrored quantity for one entry.
func (r *RedisNotifier) MirroredStock(ctx context.Context, componentID, locationID string) (int, error) {
	qty, err := r.client.Get(ctx, stockKey(componentID, locationID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, port.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get mirrored stock: %w", err)
	}
	return qty, nil
}

// Watch subscribes to stock change events. The returned stop function closes
// the subscription and the channel.
func (r *RedisNotifier) Watch(ctx context.Context) (<-chan []domain.StockChange, func()) {
	sub := r.client.Subscribe(ctx, stockChangeChannel)
	out := make(chan []domain.StockChange)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var changes []domain.StockChange
			if err := json.Unmarshal([]byte(msg.Payload), &changes); err != nil {
				continue
			}
			select {
			case out <- changes:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { sub.Close() }
}
