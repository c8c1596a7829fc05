package pagination

import "github.com/Sternrassler/rickmorty-client/pkg/model"

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	// Characters in page order.
	Characters []model.Character

	// NextURL is the cursor of the following page; empty when pagination is done.
	NextURL string

	// Version increases with every published mutation.
	Version uint64
}

// HasNext reports whether another page can be loaded.
func (s Snapshot) HasNext() bool {
	return s.NextURL != ""
}

// Len returns the number of accumulated characters.
func (s Snapshot) Len() int {
	return len(s.Characters)
}

// Listener receives the state after each successful mutation.
type Listener func(Snapshot)
