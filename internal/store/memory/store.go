// Package memory provides in-process implementations of the store interfaces.
// It backs the service when no database is configured and serves as the
// fake used by engine and worker tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/platform/logger"
	"github.com/phrazzld/taskd/internal/store"
)

// state is one consistent version of the data set.
type state struct {
	tasks map[uuid.UUID]*domain.Task
	users map[uuid.UUID]*domain.User
}

func (s *state) clone() *state {
	c := &state{
		tasks: make(map[uuid.UUID]*domain.Task, len(s.tasks)),
		users: make(map[uuid.UUID]*domain.User, len(s.users)),
	}
	for id, t := range s.tasks {
		c.tasks[id] = t
	}
	for id, u := range s.users {
		c.users[id] = u
	}
	return c
}

type txKey struct{}

// Store holds tasks and users in memory.
//
// Transactions are serialised: RunInTransaction takes an exclusive lock, works
// on a private copy of the data and swaps it in on commit. Readers outside a
// transaction see only committed data.
type Store struct {
	txMu sync.Mutex

	mu      sync.RWMutex
	current *state
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		current: &state{
			tasks: make(map[uuid.UUID]*domain.Task),
			users: make(map[uuid.UUID]*domain.User),
		},
	}
}

// RunInTransaction implements store.Transactor. fn receives a nil *sql.Tx;
// the transaction travels in the context instead, so fn must use the context
// it is given for every store call.
func (s *Store) RunInTransaction(ctx context.Context, fn store.TxFn) (err error) {
	log := logger.FromContext(ctx)

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.current.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			log.Error("rolled back transaction after panic", slog.Any("panic", p))
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, work), nil); err != nil {
		log.Debug("rolled back transaction due to error", slog.String("error", err.Error()))
		return err
	}

	s.mu.Lock()
	s.current = work
	s.mu.Unlock()

	log.Debug("transaction committed successfully")
	return nil
}

// read runs fn against the transaction's working copy, or the committed state.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if work, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(work)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.current)
}

// write runs fn against the transaction's working copy. Outside a transaction
// the write commits on its own, serialised with transactions so that neither
// overwrites the other.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if work, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(work)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.current = next
	return nil
}

// Tasks returns a TaskStore backed by s.
func (s *Store) Tasks() *TaskStore {
	return &TaskStore{s: s}
}

// Users returns a UserStore backed by s.
func (s *Store) Users() *UserStore {
	return &UserStore{s: s}
}

// Compile-time check that Store implements store.Transactor.
var _ store.Transactor = (*Store)(nil)
