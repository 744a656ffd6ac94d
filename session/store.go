package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("session changed concurrently")

	errUnchanged = errors.New("session unchanged")
)

// Backend stores the raw record. Read returns ErrNotFound when nothing is stored.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// Updater is implemented by backends that run a read-modify-write as one
// transaction, so that other processes sharing the storage cannot interleave.
// fn receives nil when no record exists and returns nil to delete it. An
// error from fn aborts the transaction and is returned as is.
type Updater interface {
	Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error
}

// Store layers read-merge-write semantics over a Backend.
type Store struct {
	mu      sync.Mutex
	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load returns the stored session or ErrNotFound.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, err
	}
	sess := decode(data)
	if sess == nil {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Save merges the non-zero fields of partial over the stored record.
func (s *Store) Save(ctx context.Context, partial *Session) error {
	return s.SaveIf(ctx, partial, nil)
}

// SaveIf is Save guarded by cond, which sees the current record (nil when
// absent) in the same transaction as the write. A cond error aborts the write.
func (s *Store) SaveIf(ctx context.Context, partial *Session, cond func(current *Session) error) error {
	fields, err := toFields(partial)
	if err != nil {
		return err
	}
	return s.mergeFields(ctx, fields, cond)
}

// Replace discards the stored record and writes sess in its place.
func (s *Store) Replace(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Write(ctx, data)
}

// Clear removes the record. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.backend.Delete(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ClearIf removes the record only when cond accepts the current one.
func (s *Store) ClearIf(ctx context.Context, cond func(current *Session) bool) (bool, error) {
	var cleared bool
	err := s.update(ctx, func(current []byte) ([]byte, error) {
		cleared = false
		sess := decode(current)
		if sess == nil || !cond(sess) {
			return nil, errUnchanged
		}
		cleared = true
		return nil, nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cleared, nil
}

func (s *Store) mergeFields(ctx context.Context, fields map[string]json.RawMessage, cond func(*Session) error) error {
	err := s.update(ctx, func(current []byte) ([]byte, error) {
		if cond != nil {
			if err := cond(decode(current)); err != nil {
				return nil, err
			}
		}
		merged := decodeFields(current)
		for k, v := range fields {
			merged[k] = v
		}
		data, err := json.Marshal(merged)
		return data, errors.Wrap(err, "marshal session")
	})
	return err
}

func (s *Store) loadFields(ctx context.Context) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, err
	}
	return decodeFields(data), nil
}

// update runs fn as a transaction when the backend supports one. Otherwise
// the read and the write are only serialized within this process.
func (s *Store) update(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.backend.(Updater); ok {
		return u.Update(ctx, fn)
	}

	current, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		current = nil
	} else if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		if err := s.backend.Delete(ctx); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil
	}
	return s.backend.Write(ctx, next)
}

// decode returns nil for a missing or unreadable record.
func decode(data []byte) *Session {
	if data == nil {
		return nil
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable session record")
		return nil
	}
	return &sess
}

func decodeFields(data []byte) map[string]json.RawMessage {
	fields := map[string]json.RawMessage{}
	if data == nil {
		return fields
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable session record")
		return map[string]json.RawMessage{}
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return fields
}

func toFields(partial *Session) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if partial == nil {
		return fields, nil
	}
	data, err := json.Marshal(partial)
	if err != nil {
		return nil, errors.Wrap(err, "marshal session")
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrap(err, "split session fields")
	}
	return fields, nil
}
