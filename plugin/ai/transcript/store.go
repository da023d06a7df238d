package transcript

import (
	"strings"
	"sync"
)

// Store is the ordered, append-only transcript. Every write is one atomic
// reducer over the current contents; nothing mutates an entry by index, so
// controllers may append from concurrent flows without losing messages.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	ids      map[string]struct{}
}

// NewStore creates an empty transcript.
func NewStore() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// Append adds messages at the end in the given order.
func (s *Store) Append(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.messages = append(s.messages, s.claimID(m))
	}
}

// AppendUnlessPrefix appends msg unless a message whose id starts with
// prefix already exists. The check and the append happen under one lock.
// Returns whether msg was appended.
func (s *Store) AppendUnlessPrefix(prefix string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasPrefixLocked(prefix) {
		return false
	}
	if !strings.HasPrefix(msg.ID, prefix) {
		msg.ID = NewID(prefix)
	}
	s.messages = append(s.messages, s.claimID(msg))
	return true
}

// Hydrate inserts loaded history ahead of anything appended since the
// transcript was created. History is older than any live message.
func (s *Store) Hydrate(history []Message) {
	if len(history) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make([]Message, 0, len(history)+len(s.messages))
	for _, m := range history {
		merged = append(merged, s.claimID(m))
	}
	s.messages = append(merged, s.messages...)
}

// SeedWelcome puts the welcome message at the front unless the transcript
// already has a welcome or any conversation. Returns whether it was added.
func (s *Store) SeedWelcome(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.Kind == KindWelcome || m.Kind == KindPlain || m.IsUser() {
			return false
		}
	}
	msg.Kind = KindWelcome
	s.messages = append([]Message{s.claimID(msg)}, s.messages...)
	return true
}

// Clear empties the transcript.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.ids = make(map[string]struct{})
}

// Messages returns a snapshot in insertion order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// HasPrefix reports whether any message id starts with prefix.
func (s *Store) HasPrefix(prefix string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPrefixLocked(prefix)
}

func (s *Store) hasPrefixLocked(prefix string) bool {
	for _, m := range s.messages {
		if strings.HasPrefix(m.ID, prefix) {
			return true
		}
	}
	return false
}

// claimID registers the message id, replacing it when empty or taken.
// Must be called with lock held.
func (s *Store) claimID(m Message) Message {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	if m.ID == "" {
		m.ID = NewID("msg_")
	}
	if _, taken := s.ids[m.ID]; taken {
		m.ID = m.ID + "_" + NewID("")
	}
	s.ids[m.ID] = struct{}{}
	return m
}
