package eviction

import "cmp"

type lruPolicy struct{}

// LRU evicts the entry with the oldest LastAccessedAt first.
// Ties go to the lowest AccessCount, then to the earliest insertion.
func LRU() Policy {
	return lruPolicy{}
}

func (lruPolicy) Name() string { return "lru" }

func (lruPolicy) Compare(a, b Candidate) int {
	if c := a.LastAccessedAt.Compare(b.LastAccessedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.AccessCount, b.AccessCount); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}
