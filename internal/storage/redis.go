package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpenRedis dials the store backing the lobby's room index. The caller owns
// the returned client; there is no package-level instance.
func OpenRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
