package redis

import "github.com/redis/rueidis"

// NewStoreForTest creates a Redis-flavoured Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c, driver: DriverRedis}
}

// NewValkeyStoreForTest creates a valkey-flavoured Store with the provided rueidis client (test-only).
func NewValkeyStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c, driver: DriverValkey}
}
