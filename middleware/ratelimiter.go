package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiter limits requests per client IP. With a redis client the
// counters are shared across instances.
func RateLimiter(rdb *redis.Client, prefix string, perMinute int64) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  perMinute,
	}

	var store limiter.Store = memory.NewStore()
	if rdb != nil {
		s, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
		if err != nil {
			log.Warn().Err(err).Str("prefix", prefix).Msg("redis rate limit store unavailable, using memory")
		} else {
			store = s
		}
	}

	return ginlimiter.NewMiddleware(limiter.New(store, rate))
}
