package credential

import (
	"sort"
	"strings"
)

// Chain is an immutable, priority ordered list of credential candidates.
// It is created once per processing unit by Resolver.Resolve and passed to
// everything that sends requests on its behalf.
type Chain struct {
	candidates []Candidate
}

func newChain(candidates []Candidate) *Chain {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority() < candidates[j].Priority()
	})

	return &Chain{candidates: candidates}
}

// NewChain returns a chain containing the given candidates ordered by their
// priority.
func NewChain(candidates ...Candidate) *Chain {
	cpy := make([]Candidate, len(candidates))
	copy(cpy, candidates)

	return newChain(cpy)
}

// Candidates returns the candidates ordered by priority.
// Every call returns the same slice, it must not be modified.
func (c *Chain) Candidates() []Candidate {
	return c.candidates
}

// Len returns the number of candidates.
func (c *Chain) Len() int {
	return len(c.candidates)
}

// Empty returns true if the chain contains no candidates.
func (c *Chain) Empty() bool {
	return len(c.candidates) == 0
}

func (c *Chain) String() string {
	if c.Empty() {
		return "none"
	}

	descs := make([]string, 0, len(c.candidates))
	for _, cand := range c.candidates {
		descs = append(descs, cand.Description())
	}

	return strings.Join(descs, ", ")
}
