package redis

import (
	"quoteflow/common"

	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

func setupClient() *redis.Client {
	redisAddr := common.GetRedisAddr()
	zlog.Debug().Str("addr", redisAddr).Msg("Connecting to redis")

	return redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
}
