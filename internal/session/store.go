package session

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrIDExhausted = errors.New("could not allocate a unique session id")
)

const (
	shardCount    = 16
	maxIDAttempts = 5
)

// Store is an in-memory session table sharded by session id. Operations
// on the same id serialize on the shard lock; different ids mostly do
// not contend. Sessions are never removed, so shard membership doubles
// as the process-lifetime id uniqueness check.
type Store struct {
	newID  func() string
	shards [shardCount]shard
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return NewStoreWithIDGenerator(uuid.NewString)
}

// NewStoreWithIDGenerator builds a store drawing session ids from gen.
// Tests use it to force id collisions.
func NewStoreWithIDGenerator(gen func() string) *Store {
	s := &Store{newID: gen}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*Session)
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.shards[h.Sum32()%shardCount]
}

// Create inserts a new active session with the given pace. Id collisions
// are retried a bounded number of times; running out of attempts returns
// ErrIDExhausted.
func (s *Store) Create(pace float64) (Session, error) {
	now := time.Now()
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		sh := s.shardFor(id)
		sh.mu.Lock()
		if _, taken := sh.sessions[id]; taken {
			sh.mu.Unlock()
			continue
		}
		sess := &Session{
			ID:          id,
			Path:        []LatLng{},
			Active:      true,
			Pace:        pace,
			CreatedAt:   now,
			LastUpdated: now,
		}
		sh.sessions[id] = sess
		out := sess.clone()
		sh.mu.Unlock()
		return out, nil
	}
	return Session{}, ErrIDExhausted
}

func (s *Store) Get(id string) (Session, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess.clone(), nil
}

// Update shallow-merges fields into the stored record and bumps
// LastUpdated. A point is appended to the path only when both
// coordinates are present, are not the (0,0) no-fix sentinel, and differ
// from the last recorded point.
func (s *Store) Update(id string, fields Fields) (Session, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}

	if fields.Latitude != nil {
		sess.Latitude = *fields.Latitude
	}
	if fields.Longitude != nil {
		sess.Longitude = *fields.Longitude
	}
	if fields.Active != nil {
		sess.Active = *fields.Active
	}
	if fields.Destination != nil {
		dest := *fields.Destination
		sess.Destination = &dest
	}
	if fields.ETA != nil {
		eta := *fields.ETA
		sess.ETA = &eta
	}

	if fields.Latitude != nil && fields.Longitude != nil {
		point := LatLng{Lat: *fields.Latitude, Lng: *fields.Longitude}
		if (point != LatLng{}) {
			if n := len(sess.Path); n == 0 || sess.Path[n-1] != point {
				sess.Path = append(sess.Path, point)
			}
		}
	}

	sess.LastUpdated = time.Now()
	return sess.clone(), nil
}

func (s *Store) SetDestination(id string, dest LatLng) (Session, error) {
	return s.Update(id, Fields{Destination: &dest})
}

func (s *Store) Deactivate(id string) (Session, error) {
	inactive := false
	return s.Update(id, Fields{Active: &inactive})
}

// Len reports the number of sessions ever created, active or not.
func (s *Store) Len() int {
	total := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		total += len(s.shards[i].sessions)
		s.shards[i].mu.Unlock()
	}
	return total
}
