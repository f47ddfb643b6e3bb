package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	notesql "github.com/shibukawa/notesql"
)

// Factory builds a Connection on demand. Factories run at most once per
// deferred entry and must not call back into the Registry.
type Factory func(ctx context.Context) (*Connection, error)

type entryState int

const (
	stateUnresolved entryState = iota
	stateResolved
	stateFailed
)

// entry is shared between the handle key and the human-name key, so a state
// transition through either key is visible through both.
type entry struct {
	handle string
	name   string

	state   entryState
	factory Factory
	conn    *Connection
	failure string
}

func (e *entry) keys() []string {
	if e.name == "" || e.name == e.handle {
		return []string{e.handle}
	}

	return []string{e.handle, e.name}
}

// Registry maps cell handles and human names to connections. Each datasource
// occupies one of three states: unresolved (a deferred factory waiting for
// first use), resolved (a live Connection), or failed (a recorded bootstrap
// error replayed on every lookup).
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	log     *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		entries: make(map[string]*entry),
		log:     log,
	}
}

// Register adds a live connection under both its handle and its human name.
// Either key already being present is an error.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNotConnection
	}

	return r.insert(&entry{
		handle: conn.Handle(),
		name:   conn.HumanName(),
		state:  stateResolved,
		conn:   conn,
	})
}

// RegisterDeferred adds a factory to be invoked the first time either key is
// looked up. The connection cost (network, authentication) is paid only if a
// cell actually uses the datasource.
func (r *Registry) RegisterDeferred(handle, name string, factory Factory) error {
	if len(handle) == 0 || handle[0] != '@' {
		return fmt.Errorf("%w: %q", notesql.ErrBadHandle, handle)
	}

	// An empty name registers the entry under its handle only. Descriptors
	// without a title still resolve by handle; the missing-name error
	// surfaces when the deferred bootstrap actually runs.
	return r.insert(&entry{
		handle:  handle,
		name:    name,
		state:   stateUnresolved,
		factory: factory,
	})
}

// RecordFailure remembers why a datasource could not be bootstrapped, so that
// later lookups report the real cause instead of a generic unknown-connection
// message. A failure may overwrite an earlier failure but never a live or
// deferred entry.
func (r *Registry) RecordFailure(handle, name, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &entry{
		handle:  handle,
		name:    name,
		state:   stateFailed,
		failure: message,
	}

	for _, key := range e.keys() {
		if old, exists := r.entries[key]; exists && old.state != stateFailed {
			return fmt.Errorf("%w: %q", notesql.ErrDuplicateRegistration, key)
		}
	}

	for _, key := range e.keys() {
		r.entries[key] = e
	}

	return nil
}

func (r *Registry) insert(e *entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range e.keys() {
		if _, exists := r.entries[key]; exists {
			return fmt.Errorf("%w: %q", notesql.ErrDuplicateRegistration, key)
		}
	}

	for _, key := range e.keys() {
		r.entries[key] = e
	}

	return nil
}

// Get resolves a handle or human name to a live connection. Unresolved
// entries run their factory exactly once: on success the entry becomes
// resolved, on error the entry becomes failed and the factory error is
// returned to this caller (later callers see the recorded failure). Unknown
// keys and failed entries yield UnknownConnectionError.
func (r *Registry) Get(ctx context.Context, key string) (*Connection, error) {
	r.mu.Lock()

	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()

		return nil, &UnknownConnectionError{Message: GenericUnknownConnectionMessage}
	}

	switch e.state {
	case stateResolved:
		conn := e.conn
		r.mu.Unlock()

		return conn, nil
	case stateFailed:
		msg := e.failure
		r.mu.Unlock()

		return nil, &UnknownConnectionError{Message: msg}
	}

	factory := e.factory
	e.factory = nil
	r.mu.Unlock()

	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrBootstrapInProgress, key)
	}

	r.log.Info("bootstrapping deferred datasource", "key", key)

	conn, err := factory(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		e.state = stateFailed
		e.failure = err.Error()

		return nil, err
	}

	e.state = stateResolved
	e.conn = conn

	return conn, nil
}

// Known reports whether the key names any entry, in any state.
func (r *Registry) Known(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[key]

	return ok
}

// Len counts distinct datasources, not lookup keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[*entry]struct{}, len(r.entries))
	for _, e := range r.entries {
		seen[e] = struct{}{}
	}

	return len(seen)
}

// Info is a snapshot of one registry entry for listing purposes.
type Info struct {
	Handle  string
	Name    string
	State   string
	Dialect notesql.Dialect
	Failure string
}

// List returns a snapshot of all datasources sorted by handle.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[*entry]struct{}, len(r.entries))
	infos := make([]Info, 0, len(r.entries))

	for _, e := range r.entries {
		if _, dup := seen[e]; dup {
			continue
		}

		seen[e] = struct{}{}

		info := Info{
			Handle:  e.handle,
			Name:    e.name,
			Failure: e.failure,
		}

		switch e.state {
		case stateResolved:
			info.State = "ready"
			info.Dialect = e.conn.Dialect()
		case stateUnresolved:
			info.State = "deferred"
		case stateFailed:
			info.State = "failed"
		}

		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Handle < infos[j].Handle })

	return infos
}

// ClosePop removes the entry under both of its keys and closes the
// connection if one was ever realized.
func (r *Registry) ClosePop(key string) error {
	r.mu.Lock()

	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()

		return &UnknownConnectionError{Message: GenericUnknownConnectionMessage}
	}

	for _, k := range e.keys() {
		delete(r.entries, k)
	}

	conn := e.conn
	r.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}

	return nil
}

// CloseAll closes every realized connection and empties the registry.
func (r *Registry) CloseAll() error {
	r.mu.Lock()

	seen := make(map[*entry]struct{}, len(r.entries))
	var conns []*Connection

	for _, e := range r.entries {
		if _, dup := seen[e]; dup {
			continue
		}

		seen[e] = struct{}{}

		if e.conn != nil {
			conns = append(conns, e.conn)
		}
	}

	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
