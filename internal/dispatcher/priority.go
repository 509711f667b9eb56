package dispatcher

import (
	"fmt"

	"github.com/mavleo96/rocket/internal/codec"
)

// TableSize returns the number of entries of a priority table for n nodes:
// one per consensus class and ordered pair of distinct nodes
func TableSize(n int) int {
	return codec.NumConsensusClasses * n * (n - 1)
}

// PriorityIndex returns the position of (class, from, to) in a priority table
func PriorityIndex(class, from, to, n int) (int, error) {
	if class < 0 || class >= codec.NumConsensusClasses {
		return 0, fmt.Errorf("message class %d out of range", class)
	}
	if from < 0 || to < 0 || from >= n || to >= n || from == to {
		return 0, fmt.Errorf("node pair (%d, %d) invalid for %d nodes", from, to, n)
	}
	receiver := to
	if to > from {
		receiver = to - 1
	}
	return class*n*(n-1) + from*(n-1) + receiver, nil
}
