package audiostore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key has no backing blob: it expired, was
	// removed by hand, or never existed.
	ErrNotFound = errors.New("audio asset not found")
	// ErrInvalidKey rejects keys that are not plain file names.
	ErrInvalidKey = errors.New("invalid audio key")
)

// Object is one blob listed by a Backend.
type Object struct {
	Key     string
	ModTime time.Time
}

// Backend persists audio blobs by key. Delete of an absent key succeeds.
type Backend interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Object, error)
	Kind() string
}

// ValidKey reports whether key is a plain file name made of letters, digits,
// dot, dash and underscore, not starting with a dot.
func ValidKey(key string) bool {
	if key == "" || len(key) > 128 || key[0] == '.' {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
