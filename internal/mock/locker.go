package mock

import (
	"context"
	"sync"

	"github.com/m-mizutani/weblogparser/internal/repository"
	"github.com/pkg/errors"
)

// Locker is on memory repository.Locker. It fails immediately if the key is held.
type Locker struct {
	held  map[string]bool
	mutex sync.Mutex

	// Acquired records keys in order of acquisition.
	Acquired []string
}

// NewLocker is constructor of Locker
func NewLocker() *Locker {
	return &Locker{held: map[string]bool{}}
}

func (x *Locker) Lock(ctx context.Context, key string) (repository.ReleaseFunc, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if x.held[key] {
		return nil, errors.Wrap(repository.ErrLockConflict, key)
	}
	x.held[key] = true
	x.Acquired = append(x.Acquired, key)

	return func(ctx context.Context) error {
		x.mutex.Lock()
		defer x.mutex.Unlock()
		delete(x.held, key)
		return nil
	}, nil
}

// Held returns true if the key is locked now.
func (x *Locker) Held(key string) bool {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.held[key]
}
