package memory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/model"
	"docchat/internal/store"
)

type fakeTurnStore struct {
	mu    sync.Mutex
	turns map[string][]model.Turn
}

func newFakeTurnStore() *fakeTurnStore {
	return &fakeTurnStore{turns: make(map[string][]model.Turn)}
}

func (f *fakeTurnStore) AppendTurn(ctx context.Context, sessionID string, t model.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns[sessionID] = append(f.turns[sessionID], t)
	return nil
}

func (f *fakeTurnStore) RecentTurns(ctx context.Context, sessionID string, n int) ([]model.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.turns[sessionID]
	if len(ts) > n {
		ts = ts[len(ts)-n:]
	}
	out := make([]model.Turn, len(ts))
	copy(out, ts)
	return out, nil
}

func (f *fakeTurnStore) ClearSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.turns[sessionID]; !ok {
		return store.ErrSessionNotFound
	}
	delete(f.turns, sessionID)
	return nil
}

func TestAppendAndRecent(t *testing.T) {
	m := New(newFakeTurnStore())
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "s1", model.Turn{Query: "first"}))
	require.NoError(t, m.Append(ctx, "s1", model.Turn{Query: "second"}))

	turns, err := m.Recent(ctx, "s1", 6)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "second", turns[1].Query)
}

func TestClear_UnknownSession(t *testing.T) {
	m := New(newFakeTurnStore())
	err := m.Clear(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestClear_RemovesHistory(t *testing.T) {
	m := New(newFakeTurnStore())
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "s1", model.Turn{Query: "q"}))
	require.NoError(t, m.Clear(ctx, "s1"))

	turns, err := m.Recent(ctx, "s1", 6)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestClear_OverSQLiteStore(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m := New(s)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "s1", model.Turn{Query: "q", Intent: model.IntentGeneral, Answer: "a"}))
	require.NoError(t, m.Clear(ctx, "s1"))

	// The store's not-found error surfaces as the memory sentinel.
	assert.ErrorIs(t, m.Clear(ctx, "s1"), ErrUnknownSession)
}

func TestLock_SerializesSameSession(t *testing.T) {
	m := New(newFakeTurnStore())

	var inCritical, maxInCritical int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("shared")
			defer unlock()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical, "same-session turns must not overlap")
}

func TestLock_IndependentSessionsDoNotBlock(t *testing.T) {
	m := New(newFakeTurnStore())

	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	// Holding session a must not block session b.
	<-done
}
