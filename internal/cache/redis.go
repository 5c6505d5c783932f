package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// activityTTL 보드 활동 로그 보존 기간
const activityTTL = 24 * time.Hour

// Activity represents one entry of a board's activity log
type Activity struct {
	BoardID   int64     `json:"boardId"`
	UserID    int64     `json:"userId"`
	Nickname  string    `json:"nickname,omitempty"`
	Action    string    `json:"action"`
	ShapeIDs  []string  `json:"shapeIds,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisClient wraps the Redis client shared by the board services
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client and pings it
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Printf("[Redis] Connected to %s", addr)
	return &RedisClient{client: client}, nil
}

// NewRedisClientFrom wraps an existing client
func NewRedisClientFrom(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Client exposes the underlying client for documents, presence and clipboards
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

func activityKey(boardID int64) string {
	return fmt.Sprintf("board:%d:activity", boardID)
}

// AddActivity appends an entry to the board's activity log
func (r *RedisClient) AddActivity(ctx context.Context, a *Activity) error {
	key := activityKey(a.BoardID)
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		log.Printf("[Redis] Failed to add activity: %v", err)
		return err
	}

	// Sliding 24h window
	r.client.Expire(ctx, key, activityTTL)
	return nil
}

// GetRecentActivity retrieves the last count entries for a board, oldest first
func (r *RedisClient) GetRecentActivity(ctx context.Context, boardID int64, count int64) ([]Activity, error) {
	if count <= 0 {
		count = 50
	}
	results, err := r.client.LRange(ctx, activityKey(boardID), -count, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeActivities(results), nil
}

// FlushBoard retrieves the whole activity log and deletes it
func (r *RedisClient) FlushBoard(ctx context.Context, boardID int64) ([]Activity, error) {
	key := activityKey(boardID)
	results, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	r.client.Del(ctx, key)

	activities := decodeActivities(results)
	log.Printf("[Redis] Flushed %d activities for board %d", len(activities), boardID)
	return activities, nil
}

func decodeActivities(results []string) []Activity {
	activities := make([]Activity, 0, len(results))
	for _, data := range results {
		var a Activity
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			continue
		}
		activities = append(activities, a)
	}
	return activities
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Health checks if Redis is healthy
func (r *RedisClient) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
