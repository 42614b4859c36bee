package eviction

import "cmp"

type lfuPolicy struct{}

// LFU evicts the entry with the lowest AccessCount first.
// Ties go to the oldest LastAccessedAt, then to the earliest insertion.
func LFU() Policy {
	return lfuPolicy{}
}

func (lfuPolicy) Name() string { return "lfu" }

func (lfuPolicy) Compare(a, b Candidate) int {
	if c := cmp.Compare(a.AccessCount, b.AccessCount); c != 0 {
		return c
	}
	if c := a.LastAccessedAt.Compare(b.LastAccessedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}
