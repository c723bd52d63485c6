package cache

import (
	"context"
	"errors"

	"github.com/chatmesh/server/internal/domain"
)

// ErrCacheMiss is returned when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// UserCache is the read-through cache in front of the user repository.
// It holds profile snapshots for the duration of a connection; presence
// transitions invalidate the entry.
type UserCache interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Set(ctx context.Context, user *domain.User) error
	Invalidate(ctx context.Context, userID string) error
}
