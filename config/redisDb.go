package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

// GetRedisDB returns nil when Redis was never connected; callers treat that
// as "no cache, no distributed lock".
func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

func GetRedisObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err = json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func SetRedisObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, exp).Err()
}

func RemoveRedisKey(ctx context.Context, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

func redisOptions() *redis.Options {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
	}
	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intFromEnv("REDIS_DB", 0),
		PoolSize: intFromEnv("REDIS_POOL_SIZE", 100),
	}
}

func dialRedis(ctx context.Context, opts *redis.Options) error {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}
	rdb = client
	locker = redislock.New(rdb)
	return nil
}

// ConnectRedisWithRetry blocks until Redis answers and sets the client and
// lock client. Call it after the HTTP server is listening.
func ConnectRedisWithRetry() {
	opts := redisOptions()
	for attempt := 1; ; attempt++ {
		err := dialRedis(context.Background(), opts)
		if err == nil {
			logg.WithFields(logrus.Fields{"field": "redis", "attempt": attempt, "addr": opts.Addr}).Info("connected to redis")
			return
		}
		sleep := retryDelay(attempt)
		logg.WithFields(logrus.Fields{"field": "redis", "attempt": attempt, "addr": opts.Addr, "retry_in": sleep.String()}).Error("failed to connect redis: " + err.Error())
		time.Sleep(sleep)
	}
}

// TryConnectRedis makes a single connection attempt. Ops tools run without
// Redis; the lock helpers then fall back to in-process and database locks.
func TryConnectRedis() bool {
	opts := redisOptions()
	if err := dialRedis(context.Background(), opts); err != nil {
		logg.WithFields(logrus.Fields{"field": "redis", "addr": opts.Addr}).Warn("redis unavailable, continuing without it: " + err.Error())
		return false
	}
	return true
}
