package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic retries when another writer touches the
// same hash between WATCH and EXEC.
const maxTxRetries = 8

var ErrConflict = errors.New("document: too many concurrent writers")

// RedisCollection stores one board collection as a hash of JSON records,
// keeps insertion order in a sorted set, and fans changes out over the
// board's pub/sub channel so every server instance sees every write.
type RedisCollection[T Keyed] struct {
	client  *redis.Client
	boardID int64
	name    string
}

// NewRedisCollection binds a collection to a Redis client.
func NewRedisCollection[T Keyed](client *redis.Client, boardID int64, name string) *RedisCollection[T] {
	return &RedisCollection[T]{client: client, boardID: boardID, name: name}
}

// EventsChannel is the pub/sub channel carrying changes of one board.
func EventsChannel(boardID int64) string {
	return fmt.Sprintf("board:%d:events", boardID)
}

func (c *RedisCollection[T]) hashKey() string {
	return fmt.Sprintf("board:%d:%s", c.boardID, c.name)
}

func (c *RedisCollection[T]) orderKey() string {
	return c.hashKey() + ":order"
}

func (c *RedisCollection[T]) seqKey() string {
	return c.hashKey() + ":seq"
}

func (c *RedisCollection[T]) List(ctx context.Context) ([]T, error) {
	ids, err := c.client.ZRange(ctx, c.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []T{}, nil
	}

	vals, err := c.client.HMGet(ctx, c.hashKey(), ids...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			log.Printf("[Document] skipping corrupt record %s/%s: %v", c.hashKey(), ids[i], err)
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *RedisCollection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var item T
	raw, err := c.client.HGet(ctx, c.hashKey(), id).Result()
	if err == redis.Nil {
		return item, false, nil
	}
	if err != nil {
		return item, false, err
	}
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return item, false, fmt.Errorf("decode %s: %w", id, err)
	}
	return item, true, nil
}

func (c *RedisCollection[T]) Insert(ctx context.Context, items ...T) error {
	if len(items) == 0 {
		return nil
	}

	fields := make([]interface{}, 0, len(items)*2)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id := item.Key()
		if id == "" {
			return ErrEmptyID
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode %s: %w", id, err)
		}
		fields = append(fields, id, data)
		ids = append(ids, id)
	}

	last, err := c.client.IncrBy(ctx, c.seqKey(), int64(len(ids))).Result()
	if err != nil {
		return err
	}
	first := last - int64(len(ids)) + 1

	members := make([]redis.Z, len(ids))
	for i, id := range ids {
		members[i] = redis.Z{Score: float64(first + int64(i)), Member: id}
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.hashKey(), fields...)
		pipe.ZAddNX(ctx, c.orderKey(), members...)
		return nil
	})
	if err != nil {
		return err
	}

	c.publish(ctx, OpInsert, ids)
	return nil
}

func (c *RedisCollection[T]) Patch(ctx context.Context, id string, fn func(*T)) (bool, error) {
	n, err := c.BatchPatch(ctx, []Patch[T]{{ID: id, Apply: fn}})
	return n > 0, err
}

func (c *RedisCollection[T]) BatchPatch(ctx context.Context, patches []Patch[T]) (int, error) {
	if len(patches) == 0 {
		return 0, nil
	}

	// Same id may appear more than once; patches apply in order.
	ids := make([]string, 0, len(patches))
	seen := make(map[string]bool, len(patches))
	for _, p := range patches {
		if !seen[p.ID] {
			seen[p.ID] = true
			ids = append(ids, p.ID)
		}
	}

	var applied []string
	txf := func(tx *redis.Tx) error {
		applied = applied[:0]

		vals, err := tx.HMGet(ctx, c.hashKey(), ids...).Result()
		if err != nil {
			return err
		}

		current := make(map[string]*T, len(ids))
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			item := new(T)
			if err := json.Unmarshal([]byte(raw), item); err != nil {
				return fmt.Errorf("decode %s: %w", ids[i], err)
			}
			current[ids[i]] = item
		}

		for _, p := range patches {
			if item, ok := current[p.ID]; ok {
				p.Apply(item)
			}
		}

		fields := make([]interface{}, 0, len(current)*2)
		for _, id := range ids {
			item, ok := current[id]
			if !ok {
				continue
			}
			data, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("encode %s: %w", id, err)
			}
			fields = append(fields, id, data)
			applied = append(applied, id)
		}
		if len(fields) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, c.hashKey(), fields...)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := c.client.Watch(ctx, txf, c.hashKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if len(applied) > 0 {
			c.publish(ctx, OpPatch, applied)
		}
		return len(applied), nil
	}
	return 0, ErrConflict
}

func (c *RedisCollection[T]) Delete(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	var hdel *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hdel = pipe.HDel(ctx, c.hashKey(), ids...)
		pipe.ZRem(ctx, c.orderKey(), members...)
		return nil
	})
	if err != nil {
		return 0, err
	}

	n := int(hdel.Val())
	if n > 0 {
		c.publish(ctx, OpDelete, ids)
	}
	return n, nil
}

func (c *RedisCollection[T]) Replace(ctx context.Context, items []T) error {
	fields := make([]interface{}, 0, len(items)*2)
	members := make([]redis.Z, 0, len(items))
	ids := make([]string, 0, len(items))
	for i, item := range items {
		id := item.Key()
		if id == "" {
			return ErrEmptyID
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode %s: %w", id, err)
		}
		fields = append(fields, id, data)
		members = append(members, redis.Z{Score: float64(i + 1), Member: id})
		ids = append(ids, id)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.hashKey(), c.orderKey())
		if len(fields) > 0 {
			pipe.HSet(ctx, c.hashKey(), fields...)
			pipe.ZAdd(ctx, c.orderKey(), members...)
		}
		pipe.Set(ctx, c.seqKey(), len(items), 0)
		return nil
	})
	if err != nil {
		return err
	}

	c.publish(ctx, OpReset, ids)
	return nil
}

// Subscribe listens on the board channel and forwards this collection's
// changes to fn on a dedicated goroutine.
func (c *RedisCollection[T]) Subscribe(fn func(Change)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	sub := c.client.Subscribe(ctx, EventsChannel(c.boardID))

	// Wait for the subscription confirmation so no later write is missed.
	if _, err := sub.Receive(ctx); err != nil {
		log.Printf("[Document] subscribe %s failed: %v", EventsChannel(c.boardID), err)
	}

	go func() {
		for msg := range sub.Channel() {
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				log.Printf("[Document] bad change event: %v", err)
				continue
			}
			if change.Collection != c.name {
				continue
			}
			fn(change)
		}
	}()

	return func() {
		cancel()
		sub.Close()
	}
}

func (c *RedisCollection[T]) publish(ctx context.Context, op Op, ids []string) {
	data, err := json.Marshal(Change{BoardID: c.boardID, Collection: c.name, Op: op, IDs: ids})
	if err != nil {
		return
	}
	if err := c.client.Publish(ctx, EventsChannel(c.boardID), data).Err(); err != nil {
		log.Printf("[Document] publish %s failed: %v", EventsChannel(c.boardID), err)
	}
}
