package netcore

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Entity is the lifecycle surface shared by every network entity type:
// TCP acceptors, TCP connectors, and UDP endpoints all satisfy it. Start is
// not part of the interface because its shutdown-callback signature is
// specific to each entity's handler type.
type Entity interface {
	// IsStarted reports whether the entity is currently started.
	IsStarted() bool

	// Stop requests the entity's shutdown. It returns an error if the
	// entity was not started.
	Stop() error
}

// Supervisor tracks a named set of entities and stops them together. It
// owns no goroutines; it is a bookkeeping convenience for applications
// composing several entities.
type Supervisor struct {
	mu       sync.Mutex
	entities map[string]Entity
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{
		entities: make(map[string]Entity),
	}
}

// Add registers an entity under a unique name. The entity may be in any
// lifecycle state.
func (s *Supervisor) Add(name string, e Entity) error {
	if e == nil {
		return fmt.Errorf("entity %q is nil", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[name]; exists {
		return fmt.Errorf("entity %q already registered", name)
	}
	s.entities[name] = e
	return nil
}

// Remove forgets an entity without stopping it.
func (s *Supervisor) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, name)
}

// Entity returns the registered entity with the given name.
func (s *Supervisor) Entity(name string) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[name]
	return e, ok
}

// StartedCount returns how many registered entities are currently started.
func (s *Supervisor) StartedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.entities {
		if e.IsStarted() {
			count++
		}
	}
	return count
}

// StopAll stops every registered entity that is currently started and
// returns the number it stopped. Entities already stopped are skipped.
func (s *Supervisor) StopAll() int {
	s.mu.Lock()
	entities := make(map[string]Entity, len(s.entities))
	for name, e := range s.entities {
		entities[name] = e
	}
	s.mu.Unlock()

	stopped := 0
	for name, e := range entities {
		if !e.IsStarted() {
			continue
		}
		if err := e.Stop(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "StopAll",
				"entity":   name,
				"error":    err.Error(),
			}).Warn("Failed to stop entity")
			continue
		}
		stopped++
	}
	return stopped
}
