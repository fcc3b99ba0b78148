package lock

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Local serializes identity keys within one process. Waiters queue on a
// per-key semaphore and give up when their context ends.
type Local struct {
	mu   sync.Mutex
	held map[string]*slot
}

type slot struct {
	sem     chan struct{}
	waiters int
}

func NewLocal() *Local {
	return &Local{held: make(map[string]*slot)}
}

// Acquire takes every key in sorted order. On failure the keys already taken
// are released before returning.
func (l *Local) Acquire(ctx context.Context, keys []string) (func(), error) {
	ordered := normalizeKeys(keys)
	taken := make([]string, 0, len(ordered))
	for _, key := range ordered {
		if err := l.lock(ctx, key); err != nil {
			l.unlockAll(taken)
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		taken = append(taken, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlockAll(taken) })
	}, nil
}

func (l *Local) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.held[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.held[key] = s
	}
	s.waiters++
	l.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.forget(key, s)
		return ctx.Err()
	}
}

func (l *Local) unlockAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		s := l.held[keys[i]]
		l.mu.Unlock()
		<-s.sem
		l.forget(keys[i], s)
	}
}

// forget drops the slot once nobody holds or waits on it.
func (l *Local) forget(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(l.held, key)
	}
}

// Len reports how many keys are held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

func normalizeKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
