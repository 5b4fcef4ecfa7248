package placement

import (
	"fmt"
	"sync"

	"github.com/mvtan/jigsaw/internal/repository/fragmentstore"
)

// RoundRobinPlacer cycles fragments through the registered stores in
// registration order: fragment 0 to store A, fragment 1 to store B, and so
// on. With a single store it degenerates to plain sequential placement.
type RoundRobinPlacer struct {
	mu        sync.RWMutex
	repos     map[string]fragmentstore.FragmentRepository
	locations []string
}

// NewRoundRobinPlacer creates an empty round-robin placer.
func NewRoundRobinPlacer() *RoundRobinPlacer {
	return &RoundRobinPlacer{
		repos: make(map[string]fragmentstore.FragmentRepository),
	}
}

// RegisterStore adds a store and its repository.
func (p *RoundRobinPlacer) RegisterStore(location string, repo fragmentstore.FragmentRepository) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.repos[location]; exists {
		return fmt.Errorf("store %s already registered", location)
	}

	p.repos[location] = repo
	p.locations = append(p.locations, location)
	return nil
}

// Place selects a store for the given fragment sequence number.
func (p *RoundRobinPlacer) Place(sequence int) (string, fragmentstore.FragmentRepository, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.locations) == 0 {
		return "", nil, fmt.Errorf("no stores registered")
	}

	location := p.locations[sequence%len(p.locations)]
	return location, p.repos[location], nil
}

// ForLocation returns the repository for a specific store location.
func (p *RoundRobinPlacer) ForLocation(location string) (fragmentstore.FragmentRepository, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	repo, exists := p.repos[location]
	if !exists {
		return nil, fmt.Errorf("no store registered for location: %s", location)
	}
	return repo, nil
}

// Locations returns all registered store locations.
func (p *RoundRobinPlacer) Locations() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	locations := make([]string, len(p.locations))
	copy(locations, p.locations)
	return locations
}
