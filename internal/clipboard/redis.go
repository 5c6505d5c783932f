package clipboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis 사용자 클립보드를 Redis에 보관 (다른 서버 인스턴스의 보드에서도 붙여넣기 가능)
type Redis struct {
	client *redis.Client
	userID int64
	ttl    time.Duration
}

// NewRedis userID 클립보드 생성 (TTL 지정)
func NewRedis(client *redis.Client, userID int64, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: client, userID: userID, ttl: ttl}
}

func (r *Redis) key() string {
	return fmt.Sprintf("clipboard:user:%d", r.userID)
}

func (r *Redis) Write(ctx context.Context, p Payload) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(), data, r.ttl).Err()
}

func (r *Redis) Read(ctx context.Context) (*Payload, error) {
	val, err := r.client.Get(ctx, r.key()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(val), nil
}
