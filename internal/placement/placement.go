// Package placement distributes fragments across multiple fragment stores.
//
// Spreading the pieces of one file over several containers is the point of
// the system: a single intercepted store reveals only part of the manifest's
// payload. The placer decides which registered store receives each fragment
// during encoding; during decoding the manifest's per-fragment directory
// field routes reads back to the right store.
package placement

import (
	"github.com/mvtan/jigsaw/internal/repository/fragmentstore"
)

// Placer selects a fragment store per fragment.
//
// Implementations must be deterministic in the sense that the location
// returned for a sequence number during one encode run is the location
// recorded in the manifest; decoding never re-runs placement.
type Placer interface {
	// RegisterStore adds a fragment store under its location string.
	RegisterStore(location string, repo fragmentstore.FragmentRepository) error

	// Place selects the store for the fragment with the given sequence number.
	Place(sequence int) (string, fragmentstore.FragmentRepository, error)

	// ForLocation returns the store registered under a location. Used during
	// decoding when the location is known from the manifest.
	ForLocation(location string) (fragmentstore.FragmentRepository, error)

	// Locations returns all registered locations in registration order. The
	// first registered location is the primary store, which also holds the
	// key file.
	Locations() []string
}
