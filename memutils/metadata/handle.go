package metadata

import "fmt"

// AllocationHandle identifies one suballocation in a buddy block. Depth is the number of
// tree levels descended from the root; Position holds one bit per level (0 for the left
// child, 1 for the right) with the first decision in bit Depth-1.
//
// The handle is the only information a consumer retains about an allocation, and it must be
// presented unchanged to free it.
type AllocationHandle struct {
	Depth    uint64
	Position uint64
}

// Step returns the child chosen at the provided level, counting from 0 at the root
func (h AllocationHandle) Step(level uint64) uint64 {
	return (h.Position >> (h.Depth - 1 - level)) & 1
}

func (h AllocationHandle) String() string {
	if h.Depth == 0 {
		return "root"
	}
	return fmt.Sprintf("%0*b", int(h.Depth), h.Position)
}
