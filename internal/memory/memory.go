// Package memory keeps the per-session conversation log. Storage is keyed
// by session id with per-key serialization, so concurrent turns against the
// same session never interleave and reads never observe a partial turn.
package memory

import (
	"context"
	"errors"
	"sync"

	"docchat/internal/model"
	"docchat/internal/store"
)

// ErrUnknownSession is returned by Clear when the session was never created.
var ErrUnknownSession = errors.New("unknown session")

// TurnStore is the slice of the storage layer memory needs.
type TurnStore interface {
	AppendTurn(ctx context.Context, sessionID string, t model.Turn) error
	RecentTurns(ctx context.Context, sessionID string, n int) ([]model.Turn, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// Memory provides per-session history over a TurnStore.
type Memory struct {
	store TurnStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a conversation memory.
func New(ts TurnStore) *Memory {
	return &Memory{store: ts, locks: make(map[string]*sync.Mutex)}
}

// Lock serializes work on one session. Returns the unlock func. Different
// sessions proceed independently.
func (m *Memory) Lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Append records a completed turn at the end of the session's log.
func (m *Memory) Append(ctx context.Context, sessionID string, t model.Turn) error {
	return m.store.AppendTurn(ctx, sessionID, t)
}

// Recent returns the most recent n turns, newest last. Unknown sessions
// yield an empty history.
func (m *Memory) Recent(ctx context.Context, sessionID string, n int) ([]model.Turn, error) {
	return m.store.RecentTurns(ctx, sessionID, n)
}

// Clear drops a session and its history.
func (m *Memory) Clear(ctx context.Context, sessionID string) error {
	unlock := m.Lock(sessionID)
	defer unlock()

	err := m.store.ClearSession(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return ErrUnknownSession
	}
	return err
}
