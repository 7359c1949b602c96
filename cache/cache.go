package cache

import (
	"context"
	"lms/config"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheInstance struct holds the redis client instance
type CacheInstance struct {
	Client *redis.Client
}

// Cache is the global redis instance
var Cache CacheInstance

// ConnectCache establishes a connection to Redis
func ConnectCache() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// The progress view cache is an optimization, not a dependency the
		// service can refuse to boot without.
		log.Printf("Warning: Redis not reachable at %s: %v", config.AppConfig.RedisAddr, err)
	}

	Cache = CacheInstance{Client: client}
}
