// Package session keeps per-conversation history in memory.
//
// Each session holds a bounded window of recent messages: once the window
// is full, the oldest messages fall off. Sessions live for the lifetime of
// the process; nothing is persisted.
package session

import (
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// DefaultMaxMessages bounds how many messages a session retains. Four
// messages is two full user/assistant exchanges, enough for follow-up
// questions without letting old turns crowd the prompt.
const DefaultMaxMessages = 4

// Store holds all live sessions. Safe for concurrent use; operations on
// different sessions do not block each other.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*history
	maxMessages int
}

type history struct {
	mu       sync.Mutex
	messages []*ai.Message
}

// NewStore creates an empty store. maxMessages values below one fall back
// to DefaultMaxMessages.
func NewStore(maxMessages int) *Store {
	if maxMessages < 1 {
		maxMessages = DefaultMaxMessages
	}
	return &Store{
		sessions:    make(map[string]*history),
		maxMessages: maxMessages,
	}
}

// Create registers a new empty session and returns its id.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &history{}
	s.mu.Unlock()
	return id
}

// Messages returns a copy of the session's current window, oldest first.
// Unknown ids yield an empty history.
func (s *Store) Messages(id string) []*ai.Message {
	s.mu.RLock()
	h, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*ai.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// AddExchange appends one user/assistant pair to the session, materializing
// the session if the id is unknown. The window is trimmed from the front so
// it never exceeds the configured bound.
func (s *Store) AddExchange(id, userInput, assistantResponse string) {
	h := s.get(id)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages,
		ai.NewUserMessage(ai.NewTextPart(userInput)),
		ai.NewModelMessage(ai.NewTextPart(assistantResponse)),
	)
	if over := len(h.messages) - s.maxMessages; over > 0 {
		h.messages = append([]*ai.Message(nil), h.messages[over:]...)
	}
}

// Clear empties a session's history but keeps the id valid, so a client can
// start a fresh conversation without re-creating the session.
func (s *Store) Clear(id string) {
	h := s.get(id)
	h.mu.Lock()
	h.messages = nil
	h.mu.Unlock()
}

// Delete removes a session entirely.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// get returns the session's history, creating it if needed. Clients may
// hold ids issued before a restart; materializing them beats erroring on
// every query.
func (s *Store) get(id string) *history {
	s.mu.RLock()
	h, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.sessions[id]; ok {
		return h
	}
	h = &history{}
	s.sessions[id] = h
	return h
}
