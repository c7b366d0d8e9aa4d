package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

// NewRedisRepo indexes rooms in redis so rejoin lookups and code collisions
// work across server workers sharing one instance.
//
// key layout:
//
//	kv: tt:room:{code}       -> RoomRecord json
//	kv: tt:playerRoom:{id}   -> room code
func NewRedisRepo(rdb *redis.Client) Repo {
	return &redisRepo{rdb: rdb}
}

func roomKey(code string) string {
	return fmt.Sprintf("tt:room:%s", code)
}

func playerRoomKey(playerID string) string {
	return fmt.Sprintf("tt:playerRoom:%s", playerID)
}

func (r *redisRepo) SaveRoom(ctx context.Context, rec *RoomRecord, ttlSeconds int) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, roomKey(rec.Code), data, time.Duration(ttlSeconds)*time.Second).Err()
}

func (r *redisRepo) GetRoom(ctx context.Context, code string) (*RoomRecord, error) {
	val, err := r.rdb.Get(ctx, roomKey(code)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec RoomRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *redisRepo) DeleteRoom(ctx context.Context, code string) error {
	rec, err := r.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	p := r.rdb.Pipeline()
	p.Del(ctx, roomKey(code))
	if rec != nil {
		for _, pid := range rec.PlayerIDs {
			p.Del(ctx, playerRoomKey(pid))
		}
	}
	_, err = p.Exec(ctx)
	return err
}

func (r *redisRepo) SetPlayerRoom(ctx context.Context, playerID, code string, ttlSeconds int) error {
	return r.rdb.Set(ctx, playerRoomKey(playerID), code, time.Duration(ttlSeconds)*time.Second).Err()
}

func (r *redisRepo) GetPlayerRoom(ctx context.Context, playerID string) (string, error) {
	val, err := r.rdb.Get(ctx, playerRoomKey(playerID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *redisRepo) ClearPlayerRoom(ctx context.Context, playerID string) error {
	return r.rdb.Del(ctx, playerRoomKey(playerID)).Err()
}
