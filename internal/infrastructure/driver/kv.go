package driver

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyNotFound returned by Get when the key was never written
var ErrKeyNotFound = errors.New("key not found")

// KeyValueDB define a key-value storage interface
type KeyValueDB interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// KVConfig connection options of the key-value store
type KVConfig struct {
	Driver   string // redis or sqlite
	Host     string // redis host
	Port     int    // redis port
	Password string // redis password
	Path     string // sqlite file path
}

// GetKVStore create a key-value store from given config
func GetKVStore(cfg *KVConfig) (KeyValueDB, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedisClient(cfg.Host, cfg.Port, cfg.Password), nil
	case "sqlite":
		return NewSQLiteKV(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported kv driver: %s", cfg.Driver)
	}
}
