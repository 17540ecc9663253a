// Package dedup rejects events whose identifier has already been accepted
// within the current shard run. First seen wins: a later event sharing an
// identifier with an earlier one is always discarded, regardless of
// content differences.
package dedup

import (
	"github.com/cartflow/cartflow/internal/bloom"
)

// IdentifierSet records event identifiers accepted so far in one shard.
// The set grows monotonically for the lifetime of one run and is never
// shared between shards.
type IdentifierSet interface {
	// Accept returns true and records the identifier if unseen, false if
	// the identifier is already present.
	Accept(id string) bool

	// Size returns the number of identifiers recorded.
	Size() int64
}

// ExactSet is the default IdentifierSet: a hash set of all identifiers
// seen. Memory grows with distinct-identifier cardinality at a small
// fixed per-identifier cost.
type ExactSet struct {
	seen map[string]struct{}
}

// NewExactSet creates an exact identifier set. sizeHint may be zero.
func NewExactSet(sizeHint int) *ExactSet {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &ExactSet{seen: make(map[string]struct{}, sizeHint)}
}

// Accept implements IdentifierSet.
func (s *ExactSet) Accept(id string) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Size implements IdentifierSet.
func (s *ExactSet) Size() int64 {
	return int64(len(s.seen))
}

// BloomSet is a probabilistic IdentifierSet with constant memory. It never
// accepts a true duplicate, but drops a non-duplicate at the configured
// false positive rate. Opt-in tradeoff for inputs whose identifier
// cardinality makes an exact set impractical.
type BloomSet struct {
	filter   *bloom.Filter
	accepted int64
}

// NewBloomSet creates a bloom-backed identifier set sized for the expected
// number of distinct identifiers and target false positive rate.
func NewBloomSet(expectedItems int, falsePositiveRate float64) *BloomSet {
	return &BloomSet{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

// Accept implements IdentifierSet.
func (s *BloomSet) Accept(id string) bool {
	b := []byte(id)
	if s.filter.Contains(b) {
		return false
	}
	s.filter.Add(b)
	s.accepted++
	return true
}

// Size implements IdentifierSet.
func (s *BloomSet) Size() int64 {
	return s.accepted
}

// EstimatedFalsePositiveRate exposes the filter's current estimate for
// run reporting.
func (s *BloomSet) EstimatedFalsePositiveRate() float64 {
	return s.filter.FalsePositiveRate()
}
