// Package sessionservice tracks which users hold an active session, so the same
// user cannot be logged in on two connections at once.
package sessionservice

import (
	"sort"
	"sync"
)

// Service guards the set of active usernames with a single lock.
type Service struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// New returns session service struct with no active users.
func New() *Service {
	return &Service{
		active: make(map[string]struct{}),
	}
}

// Acquire marks username active. It returns false if it already was.
func (s *Service) Acquire(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[username]; ok {
		return false
	}

	s.active[username] = struct{}{}

	return true
}

// Release marks username inactive.
func (s *Service) Release(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, username)
}

// IsActive reports whether username holds a session.
func (s *Service) IsActive(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.active[username]

	return ok
}

// Active returns the sorted list of active usernames.
func (s *Service) Active() []string {
	s.mu.Lock()
	users := make([]string, 0, len(s.active))

	for u := range s.active {
		users = append(users, u)
	}
	s.mu.Unlock()

	sort.Strings(users)

	return users
}
