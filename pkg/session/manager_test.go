package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/charter/pkg/domain"
	"github.com/aretw0/charter/pkg/ports"
	"github.com/aretw0/charter/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke races if locking is missing.
type slowStore struct {
	data map[string]*domain.Session
	mu   sync.Mutex
}

func (s *slowStore) Save(ctx context.Context, session *domain.Session) error {
	time.Sleep(time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Session)
	}
	s.data[session.ID] = session.Clone()
	return nil
}

func (s *slowStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	time.Sleep(time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.data[sessionID]; ok {
		return session.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *slowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *slowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_UpdateIsSerialized(t *testing.T) {
	manager := session.NewManager(&slowStore{})
	ctx := context.Background()
	id := "race-test"

	require.NoError(t, manager.Create(ctx, domain.NewSession(id, "test", "start", nil)))

	// Read-modify-write without locking would lose increments.
	var wg sync.WaitGroup
	const writers = 20
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Update(ctx, id, func(s *domain.Session) (*domain.Session, error) {
				next := s.Clone()
				next.Steps++
				return next, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, writers, loaded.Steps)
}

func TestManager_Create(t *testing.T) {
	manager := session.NewManager(&slowStore{})
	ctx := context.Background()

	require.NoError(t, manager.Create(ctx, domain.NewSession("s-1", "test", "start", nil)))

	err := manager.Create(ctx, domain.NewSession("s-1", "test", "elsewhere", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	loaded, err := manager.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "start", loaded.CurrentState)
}

func TestManager_UpdateFailureSavesNothing(t *testing.T) {
	manager := session.NewManager(&slowStore{})
	ctx := context.Background()
	require.NoError(t, manager.Create(ctx, domain.NewSession("s-1", "test", "start", nil)))

	boom := errors.New("boom")
	_, err := manager.Update(ctx, "s-1", func(s *domain.Session) (*domain.Session, error) {
		s.CurrentState = "mutated"
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	loaded, err := manager.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "start", loaded.CurrentState)

	_, err = manager.Update(ctx, "missing", func(s *domain.Session) (*domain.Session, error) { return s, nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

// countingLocker records lock calls and the TTL it was asked for.
type countingLocker struct {
	mu       sync.Mutex
	locks    int
	unlocks  int
	ttl      time.Duration
	failWith error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.locks++
	l.ttl = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("Every operation takes and releases the lock", func(t *testing.T) {
		locker := &countingLocker{}
		manager := session.NewManager(&slowStore{}, session.WithLocker(locker), session.WithLockTTL(5*time.Second))

		require.NoError(t, manager.Save(ctx, domain.NewSession("s-1", "test", "start", nil)))
		_, err := manager.Load(ctx, "s-1")
		require.NoError(t, err)
		require.NoError(t, manager.Delete(ctx, "s-1"))

		assert.Equal(t, 3, locker.locks)
		assert.Equal(t, 3, locker.unlocks)
		assert.Equal(t, 5*time.Second, locker.ttl)
	})

	t.Run("Lock failure stops the operation", func(t *testing.T) {
		store := &slowStore{}
		locker := &countingLocker{failWith: errors.New("redis down")}
		manager := session.NewManager(store, session.WithLocker(locker))

		err := manager.Save(ctx, domain.NewSession("s-1", "test", "start", nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to acquire distributed lock")

		ids, _ := store.List(ctx)
		assert.Empty(t, ids)
	})
}
