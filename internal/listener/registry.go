// Package listener fans balance changes out to per-user subscribers.
package listener

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Registry maps usernames to their active subscribers.
type Registry struct {
	log zerolog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[domain.BalanceListener]struct{}
}

// NewRegistry returns an empty listener registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		log:         logger.With().Str("component", "listener").Logger(),
		subscribers: make(map[string]map[domain.BalanceListener]struct{}),
	}
}

// Subscribe registers l for balance changes of username.
//
// Subscribing the same listener twice keeps a single registration.
func (r *Registry) Subscribe(username string, l domain.BalanceListener) {
	if l == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subscribers[username]
	if !ok {
		set = make(map[domain.BalanceListener]struct{})
		r.subscribers[username] = set
	}

	set[l] = struct{}{}
}

// Unsubscribe removes l from username's subscribers. Unknown users and listeners
// are ignored.
func (r *Registry) Unsubscribe(username string, l domain.BalanceListener) {
	if l == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subscribers[username]
	if !ok {
		return
	}

	delete(set, l)

	if len(set) == 0 {
		delete(r.subscribers, username)
	}
}

// Count returns the number of subscribers of username.
func (r *Registry) Count(username string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subscribers[username])
}

// Notify delivers the change to every current subscriber of username.
//
// Subscriber errors and panics are logged and never stop delivery to the others.
func (r *Registry) Notify(username string, balance int64, message string) {
	r.mu.RLock()
	set := r.subscribers[username]
	targets := make([]domain.BalanceListener, 0, len(set))

	for l := range set {
		targets = append(targets, l)
	}
	r.mu.RUnlock()

	for _, l := range targets {
		if err := r.deliver(l, username, balance, message); err != nil {
			r.log.Error().
				Err(err).
				Str("username", username).
				Int64("balance", balance).
				Msg("subscriber failed")
		}
	}
}

func (r *Registry) deliver(l domain.BalanceListener, username string, balance int64, message string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("subscriber panic: %v", p)
		}
	}()

	return l.OnBalanceChanged(username, balance, message)
}
