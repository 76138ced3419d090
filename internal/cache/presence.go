package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineUsersKey = "online_users"

func lastSeenKey(userID string) string { return "last_seen:" + userID }

// Presence keeps who is online and when each user was last seen.
type Presence struct {
	rdb *redis.Client
}

func NewPresence(addr, password string, db int) *Presence {
	return &Presence{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (p *Presence) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *Presence) Close() error { return p.rdb.Close() }

func (p *Presence) MarkOnline(ctx context.Context, userID string) error {
	if err := p.rdb.SAdd(ctx, onlineUsersKey, userID).Err(); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	return nil
}

func (p *Presence) MarkOffline(ctx context.Context, userID string) error {
	if err := p.rdb.SRem(ctx, onlineUsersKey, userID).Err(); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	return nil
}

func (p *Presence) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.rdb.SIsMember(ctx, onlineUsersKey, userID).Result()
}

func (p *Presence) SetLastSeen(ctx context.Context, userID string, t time.Time) error {
	return p.rdb.Set(ctx, lastSeenKey(userID), t.Unix(), 0).Err()
}

// LastSeen returns the zero time for a user never seen.
func (p *Presence) LastSeen(ctx context.Context, userID string) (time.Time, error) {
	val, err := p.rdb.Get(ctx, lastSeenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0).UTC(), nil
}
