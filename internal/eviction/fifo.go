package eviction

import "cmp"

type fifoPolicy struct{}

// FIFO evicts in insertion order regardless of access.
func FIFO() Policy {
	return fifoPolicy{}
}

func (fifoPolicy) Name() string { return "fifo" }

func (fifoPolicy) Compare(a, b Candidate) int {
	return cmp.Compare(a.Seq, b.Seq)
}
