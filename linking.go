package slangdict

import (
	"github.com/maxhully/slangdict/linker"
)

// A LinkedDefinition is a definition whose body and example have been run
// through the term linker, ready to render.
type LinkedDefinition struct {
	Definition
	LinkedBody    []linker.Segment
	LinkedExample []linker.Segment
	UserVote      Vote
}

// LinkDefinitions links every definition against one vocabulary snapshot, so
// a page never mixes two versions of the vocabulary. votes may be nil.
//
// Fetching the snapshot can take a pooled connection, so callers should get
// it before taking their own.
func LinkDefinitions(snap *linker.Snapshot, defs []Definition, votes map[int64]Vote) []LinkedDefinition {
	linked := make([]LinkedDefinition, len(defs))
	for i := range defs {
		linked[i] = LinkedDefinition{
			Definition:    defs[i],
			LinkedBody:    linker.Link(defs[i].Body, snap),
			LinkedExample: linker.Link(defs[i].Example, snap),
			UserVote:      votes[defs[i].DefinitionID],
		}
	}
	return linked
}
