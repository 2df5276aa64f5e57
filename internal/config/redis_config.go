package config

import "strconv"

// RedisConfig configures the optional Redis backing for flow state and
// rate-limit counters. An empty address selects the in-memory stores.
type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type Redis struct{}

var _ RedisConfig = Redis{}

func (Redis) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Redis) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Redis) GetRedisDB() int {
	db, err := strconv.Atoi(GetEnv("REDIS_DB", "0"))
	if err != nil {
		return 0
	}
	return db
}
