// Package tenantstate holds the process-wide, mutex-guarded in-memory state
// per-user provider config, per-user session flags, and
// short-lived email verification codes. Each concern owns its own lock: the
// "single object owning its mutex and map" shape, applied here to three
// independent maps instead of one.
package tenantstate

import (
	"sync"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/providers"
)

// UserConfig holds a user's saved provider configuration. Callers receive a
// pointer and must treat it as read-only: the store does not deep-copy
// because Embedder/LLM/Reranker are opaque, non-copyable client objects.
type UserConfig struct {
	APIKey           string
	BaseURL          string
	RerankerKey      string
	RerankerBaseURL  string
	LLM              providers.LLM
	Embedder         providers.Embedder
	Reranker         providers.Reranker
	RAGSystemEnabled bool
}

// UserSession tracks per-user, per-process volatile state.
type UserSession struct {
	DocumentsLoaded bool
	Conversations   []int64
	Documents       []string
}

type verificationEntry struct {
	code      string
	expiresAt time.Time
}

const verificationTTL = 360 * time.Second

// Store is the three-map container holding that state.
type Store struct {
	configsMu sync.RWMutex
	configs   map[int64]*UserConfig

	sessionsMu sync.RWMutex
	sessions   map[int64]*UserSession

	codesMu sync.Mutex
	codes   map[string]verificationEntry
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		configs:  make(map[int64]*UserConfig),
		sessions: make(map[int64]*UserSession),
		codes:    make(map[string]verificationEntry),
	}
}

// SetConfig replaces a user's config wholesale.
func (s *Store) SetConfig(userID int64, cfg *UserConfig) {
	s.configsMu.Lock()
	defer s.configsMu.Unlock()
	s.configs[userID] = cfg
}

// GetConfig returns the stored config, or nil if absent.
func (s *Store) GetConfig(userID int64) *UserConfig {
	s.configsMu.RLock()
	defer s.configsMu.RUnlock()
	return s.configs[userID]
}

// DeleteConfig removes a user's config.
func (s *Store) DeleteConfig(userID int64) {
	s.configsMu.Lock()
	defer s.configsMu.Unlock()
	delete(s.configs, userID)
}

// HasConfig reports whether a user has saved config.
func (s *Store) HasConfig(userID int64) bool {
	s.configsMu.RLock()
	defer s.configsMu.RUnlock()
	_, ok := s.configs[userID]
	return ok
}

// ListUserIDs returns every user id with a saved config.
func (s *Store) ListUserIDs() []int64 {
	s.configsMu.RLock()
	defer s.configsMu.RUnlock()
	ids := make([]int64, 0, len(s.configs))
	for id := range s.configs {
		ids = append(ids, id)
	}
	return ids
}

// EnsureSession returns the user's session, creating one with defaults on
// first call.
func (s *Store) EnsureSession(userID int64) *UserSession {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &UserSession{}
		s.sessions[userID] = sess
	}
	return sess
}

// SetDocumentsLoaded flips the documents_loaded flag on the user's session.
func (s *Store) SetDocumentsLoaded(userID int64, loaded bool) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &UserSession{}
		s.sessions[userID] = sess
	}
	sess.DocumentsLoaded = loaded
}

// SetVerificationCode stores a fresh code for email, sweeping expired
// entries opportunistically.
func (s *Store) SetVerificationCode(email, code string) {
	s.codesMu.Lock()
	defer s.codesMu.Unlock()
	s.sweepLocked()
	s.codes[email] = verificationEntry{code: code, expiresAt: time.Now().Add(verificationTTL)}
}

// VerifyCode consumes the code for email if present and unexpired,
// reporting whether it matched. The entry is removed either way once read,
// mirroring "verify consumes the code on success" plus the opportunistic
// sweep before reading.
func (s *Store) VerifyCode(email, code string) bool {
	s.codesMu.Lock()
	defer s.codesMu.Unlock()
	s.sweepLocked()
	entry, ok := s.codes[email]
	if !ok {
		return false
	}
	delete(s.codes, email)
	return entry.code == code
}

func (s *Store) sweepLocked() {
	now := time.Now()
	for email, entry := range s.codes {
		if now.After(entry.expiresAt) {
			delete(s.codes, email)
		}
	}
}

// Stats summarizes store occupancy. It acquires all three locks in a fixed
// order (configs, sessions, codes) to avoid deadlock against any future
// operation that might need more than one.
type Stats struct {
	ConfiguredUsers int
	ActiveSessions  int
	PendingCodes    int
}

// GetStats reports store-wide counts.
func (s *Store) GetStats() Stats {
	s.configsMu.RLock()
	defer s.configsMu.RUnlock()
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	s.codesMu.Lock()
	defer s.codesMu.Unlock()
	s.sweepLocked()
	return Stats{
		ConfiguredUsers: len(s.configs),
		ActiveSessions:  len(s.sessions),
		PendingCodes:    len(s.codes),
	}
}
