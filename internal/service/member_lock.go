package service

import (
	"context"
	"errors"
	"sync"
)

var ErrLockTimeout = errors.New("member lock wait timed out")

// MemberLocker serializa el procesamiento por usuario externo. Eventos de
// usuarios distintos nunca se bloquean entre si.
type MemberLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type memoryMemberLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func NewMemoryMemberLocker() MemberLocker {
	return &memoryMemberLocker{locks: make(map[string]*lockEntry)}
}

func (l *memoryMemberLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.forget(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.forget(key, e)
		})
	}, nil
}

// forget libera la entrada cuando ya nadie la espera ni la tiene.
func (l *memoryMemberLocker) forget(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
