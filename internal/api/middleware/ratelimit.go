package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewRateLimiter creates a Gin middleware applying a fixed request budget per
// caller, in limiter rate notation (e.g. "100-M"). When redisURL is set the
// budget is shared across replicas through Redis; otherwise each process
// keeps its own in-memory counters.
func NewRateLimiter(rateSpec, redisURL string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(rateSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rateSpec, err)
	}

	var store limiter.Store
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		store, err = redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix: "warden:ratelimit",
		})
		if err != nil {
			return nil, fmt.Errorf("create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}

	instance := limiter.New(store, rate)
	return mgin.NewMiddleware(instance), nil
}
