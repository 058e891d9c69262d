package cache

import "time"

// RedisOption configures Redis cache.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// WithRedisHost sets Redis host.
func WithRedisHost(host string) RedisOption {
	return func(c *RedisConfig) {
		c.Host = host
	}
}

// WithRedisPort sets Redis port.
func WithRedisPort(port int) RedisOption {
	return func(c *RedisConfig) {
		c.Port = port
	}
}

// WithRedisPassword sets Redis password.
func WithRedisPassword(password string) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
	}
}

// WithRedisDB sets Redis database number.
func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) {
		c.DB = db
	}
}

// WithRedisPrefix sets key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		c.Prefix = prefix
	}
}

// BoltOption configures the file-backed cache.
type BoltOption func(*BoltConfig)

// BoltConfig holds bbolt configuration.
type BoltConfig struct {
	Bucket      string
	OpenTimeout time.Duration
}

// WithBoltBucket sets the bucket all keys are stored in.
func WithBoltBucket(bucket string) BoltOption {
	return func(c *BoltConfig) {
		c.Bucket = bucket
	}
}

// WithBoltOpenTimeout bounds how long Open waits for the file lock.
func WithBoltOpenTimeout(d time.Duration) BoltOption {
	return func(c *BoltConfig) {
		c.OpenTimeout = d
	}
}
