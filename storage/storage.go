package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no artifact exists at the key.
	ErrNotFound = errors.New("Not found")
)

const (
	// DefaultMaxRetries is the number of retries for a write operation.
	DefaultMaxRetries = 4

	// DefaultRetryDelay is the number of milliseconds to wait before
	// attempting a retry after a failure.
	DefaultRetryDelay = 5000
)

// Storage persists the pipeline's artifact trail. Each stage writes its
// artifact under a unique key before the pipeline proceeds, so a crash leaves
// a resumable trail identifiable by which keys exist.
type Storage interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, body []byte) error
	Remove(ctx context.Context, key string) error
	List(ctx context.Context, path string) ([]string, error)
}

// Config is geared towards bucket style storage, where keys live under a
// specific root.
type Config struct {
	Bucket     string `default:"standalone" envconfig:"STORAGE_BUCKET" json:"bucket"`
	Root       string `default:"./tmp" envconfig:"STORAGE_ROOT" json:"root"`
	MaxRetries int    `default:"4" envconfig:"STORAGE_MAX_RETRIES" json:"max_retries"`
	RetryDelay int    `default:"5000" envconfig:"STORAGE_RETRY_DELAY" json:"retry_delay"`
}

func NewConfig(bucket, root string) Config {
	return Config{
		Bucket:     bucket,
		Root:       root,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

func (c Config) String() string {
	return fmt.Sprintf("{Bucket:%v Root:%s MaxRetries:%v RetryDelay:%v ms}",
		c.Bucket, c.Root, c.MaxRetries, c.RetryDelay)
}

// CreateStorage builds the appropriate Storage from the config. The bucket
// value "standalone" selects the local filesystem and "mock" an in-memory
// store; anything else is an S3 bucket name.
func CreateStorage(config Config) (Storage, error) {
	if len(config.Bucket) == 0 {
		return nil, errors.New("Bucket value required")
	}

	switch strings.ToLower(config.Bucket) {
	case "standalone":
		return NewFilesystemStorage(config), nil
	case "mock":
		return NewMockStorage(), nil
	}

	return NewS3Storage(config), nil
}
