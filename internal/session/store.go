// Package session persists respondent sessions between requests.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

var (
	ErrNotFound = errors.New("session not found or expired")
	// ErrLocked is returned by Lock while another holder owns the lock.
	ErrLocked = errors.New("session is locked")
)

// UnlockFunc releases a lock taken with Store.Lock. Releasing a lock that
// already expired is not an error.
type UnlockFunc func(ctx context.Context) error

// Store keeps sessions for a sliding TTL.
type Store interface {
	Get(ctx context.Context, id string) (*survey.Session, error)
	// Save writes s and restarts its TTL.
	Save(ctx context.Context, s *survey.Session) error
	Delete(ctx context.Context, id string) error
	// Lock takes a short-lived exclusive lock on the session ID.
	Lock(ctx context.Context, id string, ttl time.Duration) (UnlockFunc, error)
	Close() error
}
