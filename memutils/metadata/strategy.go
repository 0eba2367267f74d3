package metadata

// AllocationStrategy exposes options for choosing which subtree receives a new allocation
// when more than one can hold it
type AllocationStrategy uint32

const (
	// AllocationStrategyMinMemory descends into the child with the fewest free bytes first. Allocations
	// gather in subtrees that are already busy and large free regions stay whole. This is the
	// default.
	AllocationStrategyMinMemory AllocationStrategy = 1 << iota
	// AllocationStrategyMinOffset always tries the left child first, packing allocations toward
	// the start of the block
	AllocationStrategyMinOffset
)

var allocationStrategyMapping = map[AllocationStrategy]string{
	AllocationStrategyMinMemory: "AllocationStrategyMinMemory",
	AllocationStrategyMinOffset: "AllocationStrategyMinOffset",
}

func (s AllocationStrategy) String() string {
	return allocationStrategyMapping[s]
}
