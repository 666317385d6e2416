// Package uuid mints run identifiers.
package uuid

import "github.com/google/uuid"

// Generator creates time-ordered UUID strings. Implements
// crawler.IDGenerator.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string. V7 keeps run IDs sortable by creation
// time; on the rare entropy failure it falls back to a random V4.
func (Generator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
