package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrQueueEmpty = errors.New("notification queue empty")
	ErrBadPayload = errors.New("bad notification payload")
)

// RedisQueue is the outbox between the API (Send = LPUSH) and the delivery
// worker (Pop = BRPOP). FIFO per key.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Send(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	return q.rdb.LPush(ctx, q.key, b).Err()
}

// Pop blocks up to timeout. ErrQueueEmpty means nothing arrived in time.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (Message, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Message{}, ErrQueueEmpty
		}
		return Message{}, err
	}

	// res = [key, value]
	if len(res) != 2 {
		return Message{}, fmt.Errorf("%w: unexpected BRPOP reply of %d elements", ErrBadPayload, len(res))
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	return msg, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
