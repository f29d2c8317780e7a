package relay

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harun/logrelay/internal/metrics"
)

// maxIDAttempts bounds how often Create retries after an id collision.
const maxIDAttempts = 8

// TeardownPolicy decides when a disconnecting connection removes its session.
type TeardownPolicy string

const (
	// TeardownOnDisconnect removes the session whenever any attached
	// connection closes, even if others are still attached.
	TeardownOnDisconnect TeardownPolicy = "disconnect"
	// TeardownLastSubscriber removes the session once its last attached
	// connection closes.
	TeardownLastSubscriber TeardownPolicy = "last-subscriber"
)

// ParseTeardownPolicy validates a policy name. Empty selects TeardownOnDisconnect.
func ParseTeardownPolicy(name string) (TeardownPolicy, error) {
	switch TeardownPolicy(name) {
	case "", TeardownOnDisconnect:
		return TeardownOnDisconnect, nil
	case TeardownLastSubscriber:
		return TeardownLastSubscriber, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTeardownPolicy, name)
	}
}

// Session is the isolation unit: one pipe topic and one chat topic shared by
// every connection attached to it.
type Session struct {
	ID        string
	Pipe      *Topic[string]
	Chat      *Topic[ChatMessage]
	CreatedAt time.Time

	attached int
}

// SessionInfo is a read-only snapshot of a session.
type SessionInfo struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Connections int       `json:"connections"`
}

// RegistryConfig holds registry configuration
type RegistryConfig struct {
	Capacity int
	Teardown TeardownPolicy
	Metrics  *metrics.Metrics
	// NewID overrides session id generation. Defaults to NewUUID.
	NewID func() string
}

// Registry owns the set of live sessions. All access goes through its
// methods and is serialized by a single lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	capacity int
	teardown TeardownPolicy
	metrics  *metrics.Metrics
	newID    func() string
}

// NewRegistry creates a new session registry
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Capacity < 0 {
		return nil, ErrInvalidCapacity
	}
	teardown, err := ParseTeardownPolicy(string(cfg.Teardown))
	if err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetrics()
	}
	if cfg.NewID == nil {
		cfg.NewID = NewUUID
	}

	return &Registry{
		sessions: make(map[string]*Session),
		capacity: cfg.Capacity,
		teardown: teardown,
		metrics:  cfg.Metrics,
		newID:    cfg.NewID,
	}, nil
}

// Create allocates a fresh session and returns its id.
func (r *Registry) Create() (string, error) {
	pipeDrops := r.metrics.MessagesDropped.WithLabelValues(metrics.TopicPipe)
	chatDrops := r.metrics.MessagesDropped.WithLabelValues(metrics.TopicChat)

	pipe, err := NewTopic[string](r.capacity, pipeDrops.Inc)
	if err != nil {
		return "", err
	}
	chat, err := NewTopic[ChatMessage](r.capacity, chatDrops.Inc)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for range maxIDAttempts {
		id := r.newID()
		if _, exists := r.sessions[id]; exists || id == "" {
			continue
		}

		r.sessions[id] = &Session{
			ID:        id,
			Pipe:      pipe,
			Chat:      chat,
			CreatedAt: time.Now(),
		}
		r.metrics.SessionsCreated.Inc()
		r.metrics.SessionsActive.Set(float64(len(r.sessions)))
		return id, nil
	}

	return "", ErrIDExhausted
}

// Lookup returns the session registered under id.
func (r *Registry) Lookup(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, nil
}

// Remove deletes the session. Removing an absent id is a no-op.
// It reports whether a session was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(id)
}

// Attach looks up the session and records one more attached connection.
func (r *Registry) Attach(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	session.attached++
	return session, nil
}

// Detach records that a connection left the session and applies the
// teardown policy. It reports whether the session was removed.
func (r *Registry) Detach(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return false
	}
	if session.attached > 0 {
		session.attached--
	}

	if r.teardown == TeardownLastSubscriber && session.attached > 0 {
		return false
	}
	return r.removeLocked(id)
}

// abandon drops an attachment that never became a live connection,
// without applying the teardown policy.
func (r *Registry) abandon(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, exists := r.sessions[id]; exists && session.attached > 0 {
		session.attached--
	}
}

func (r *Registry) removeLocked(id string) bool {
	if _, exists := r.sessions[id]; !exists {
		return false
	}
	delete(r.sessions, id)
	r.metrics.SessionsRemoved.Inc()
	r.metrics.SessionsActive.Set(float64(len(r.sessions)))
	return true
}

// Count returns the number of registered sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Sessions returns a snapshot of all registered sessions, oldest first.
func (r *Registry) Sessions() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, session := range r.sessions {
		infos = append(infos, SessionInfo{
			ID:          session.ID,
			CreatedAt:   session.CreatedAt,
			Connections: session.attached,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Teardown returns the configured teardown policy
func (r *Registry) Teardown() TeardownPolicy {
	return r.teardown
}
