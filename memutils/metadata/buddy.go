package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/arsenal/devres/memutils"
)

// maxBuddyDepth is the deepest level an allocation can sit at: one Position bit per level
const maxBuddyDepth = 64

const noChildren int32 = -1

type buddyNode struct {
	offset int
	size   int
	// free is the number of unallocated bytes in this node's subtree
	free int
	// left is the arena index of this node's left child, or noChildren. The right child is
	// always at left+1.
	left      int32
	allocated bool
}

func (n *buddyNode) isSplit() bool { return n.left != noChildren }

// BuddyBlockMetadata is a binary buddy allocator whose tree nodes count free bytes rather than
// carry in-use flags. Children are materialized lazily the first time a node is split, and
// are placed in a flat arena as an adjacent pair so that no per-node heap allocations are made
// and an AllocationHandle can be turned back into a node by walking indices.
//
// Freeing an allocation only returns its bytes to the counters along its path. Split nodes
// are never merged back together unless the metadata was created with coalescing enabled.
type BuddyBlockMetadata struct {
	BlockMetadataBase

	coalesce   bool
	allocCount int

	nodes     []buddyNode
	freePairs []int32
}

var _ BlockMetadata = &BuddyBlockMetadata{}

// NewBuddyBlockMetadata creates a new, uninitialized BuddyBlockMetadata. If coalesce is true,
// freeing an allocation will collapse any split node whose children have both become entirely
// free.
func NewBuddyBlockMetadata(coalesce bool) *BuddyBlockMetadata {
	return &BuddyBlockMetadata{
		coalesce: coalesce,
	}
}

func (m *BuddyBlockMetadata) Init(size int) {
	m.BlockMetadataBase.Init(size)
	m.Clear()
}

func (m *BuddyBlockMetadata) Clear() {
	m.nodes = append(m.nodes[:0], buddyNode{
		offset: 0,
		size:   m.Size(),
		free:   m.Size(),
		left:   noChildren,
	})
	m.freePairs = m.freePairs[:0]
	m.allocCount = 0
}

func (m *BuddyBlockMetadata) AllocationCount() int { return m.allocCount }
func (m *BuddyBlockMetadata) SumFreeSize() int     { return m.nodes[0].free }
func (m *BuddyBlockMetadata) IsEmpty() bool        { return m.allocCount == 0 }

// NodeCount returns the number of tree nodes currently materialized
func (m *BuddyBlockMetadata) NodeCount() int { return len(m.nodes) - 2*len(m.freePairs) }

func (m *BuddyBlockMetadata) MayHaveFreeBlock(size int) bool {
	return size > 0 && m.nodes[0].free >= size
}

// FreeRegionsCount returns the number of unsplit, unallocated nodes. Adjacent free nodes that
// have not been coalesced are counted separately.
func (m *BuddyBlockMetadata) FreeRegionsCount() int {
	count := 0
	_ = m.visit(0, 0, 0, func(index int32, handle AllocationHandle) error {
		if !m.nodes[index].allocated {
			count++
		}
		return nil
	})
	return count
}

func (m *BuddyBlockMetadata) Alloc(size int, alignment uint, strategy AllocationStrategy) (AllocationHandle, int, bool) {
	if size <= 0 || m.nodes[0].free < size {
		return AllocationHandle{}, 0, false
	}
	if alignment == 0 {
		alignment = 1
	}

	handle, terminal, success := m.search(0, size, int(alignment), strategy, AllocationHandle{})
	if !success {
		return AllocationHandle{}, 0, false
	}

	m.walk(handle, func(index int32) {
		m.nodes[index].free -= size
	})
	m.nodes[terminal].allocated = true
	m.allocCount++

	memutils.DebugValidate(m)
	return handle, m.nodes[terminal].offset, true
}

func (m *BuddyBlockMetadata) search(index int32, size, alignment int, strategy AllocationStrategy, handle AllocationHandle) (AllocationHandle, int32, bool) {
	node := m.nodes[index]
	if node.allocated || node.free < size {
		return AllocationHandle{}, 0, false
	}

	if node.isSplit() {
		return m.searchChildren(index, size, alignment, strategy, handle)
	}

	if handle.Depth < maxBuddyDepth && m.splitIsProfitable(&node, size, alignment) {
		m.split(index, alignment)
		found, terminal, success := m.searchChildren(index, size, alignment, strategy, handle)
		if success {
			return found, terminal, true
		}

		// Neither half could take the request, so the split bought nothing
		m.collapse(index)
		return AllocationHandle{}, 0, false
	}

	if !memutils.IsAligned(node.offset, alignment) {
		return AllocationHandle{}, 0, false
	}

	return handle, index, true
}

// splitIsProfitable is only valid for unsplit, unallocated nodes
func (m *BuddyBlockMetadata) splitIsProfitable(node *buddyNode, size, alignment int) bool {
	if node.free <= size {
		return false
	}

	leftSize := memutils.AlignUp(node.size/2, alignment)
	return leftSize >= size && leftSize < node.size
}

func (m *BuddyBlockMetadata) searchChildren(index int32, size, alignment int, strategy AllocationStrategy, handle AllocationHandle) (AllocationHandle, int32, bool) {
	left := m.nodes[index].left
	right := left + 1

	first, second := left, right
	firstBit, secondBit := uint64(0), uint64(1)

	if strategy != AllocationStrategyMinOffset {
		leftFree := m.nodes[left].free
		rightFree := m.nodes[right].free

		if rightFree >= size && (leftFree < size || rightFree < leftFree) {
			first, second = right, left
			firstBit, secondBit = 1, 0
		}
	}

	next := AllocationHandle{Depth: handle.Depth + 1, Position: handle.Position << 1}

	if m.nodes[first].free >= size {
		found, terminal, success := m.search(first, size, alignment, strategy, AllocationHandle{Depth: next.Depth, Position: next.Position | firstBit})
		if success {
			return found, terminal, true
		}
	}

	if m.nodes[second].free >= size {
		return m.search(second, size, alignment, strategy, AllocationHandle{Depth: next.Depth, Position: next.Position | secondBit})
	}

	return AllocationHandle{}, 0, false
}

func (m *BuddyBlockMetadata) split(index int32, alignment int) {
	var left int32
	if pairCount := len(m.freePairs); pairCount > 0 {
		left = m.freePairs[pairCount-1]
		m.freePairs = m.freePairs[:pairCount-1]
	} else {
		left = int32(len(m.nodes))
		m.nodes = append(m.nodes, buddyNode{}, buddyNode{})
	}

	parent := m.nodes[index]
	leftSize := memutils.AlignUp(parent.size/2, alignment)

	m.nodes[left] = buddyNode{
		offset: parent.offset,
		size:   leftSize,
		free:   leftSize,
		left:   noChildren,
	}
	m.nodes[left+1] = buddyNode{
		offset: parent.offset + leftSize,
		size:   parent.size - leftSize,
		free:   parent.size - leftSize,
		left:   noChildren,
	}
	m.nodes[index].left = left
}

// collapse is only valid when both children are unsplit and unallocated
func (m *BuddyBlockMetadata) collapse(index int32) {
	left := m.nodes[index].left
	m.nodes[left] = buddyNode{left: noChildren}
	m.nodes[left+1] = buddyNode{left: noChildren}
	m.freePairs = append(m.freePairs, left)
	m.nodes[index].left = noChildren
}

func (m *BuddyBlockMetadata) canCollapse(index int32) bool {
	node := &m.nodes[index]
	if !node.isSplit() || node.free != node.size {
		return false
	}

	left := &m.nodes[node.left]
	right := &m.nodes[node.left+1]
	return !left.isSplit() && !right.isSplit() && !left.allocated && !right.allocated
}

// walk calls visitor on every node along the handle's path, root first, and returns the
// terminal node's index
func (m *BuddyBlockMetadata) walk(handle AllocationHandle, visitor func(index int32)) int32 {
	index := int32(0)
	visitor(index)

	for level := uint64(0); level < handle.Depth; level++ {
		index = m.nodes[index].left + int32(handle.Step(level))
		visitor(index)
	}

	return index
}

func (m *BuddyBlockMetadata) Free(handle AllocationHandle, size int) {
	var path [maxBuddyDepth + 1]int32
	pathLen := 0

	terminal := m.walk(handle, func(index int32) {
		m.nodes[index].free += size
		path[pathLen] = index
		pathLen++
	})
	m.nodes[terminal].allocated = false
	m.allocCount--

	if m.coalesce {
		for i := pathLen - 2; i >= 0; i-- {
			if !m.canCollapse(path[i]) {
				break
			}
			m.collapse(path[i])
		}
	}

	memutils.DebugValidate(m)
}

func (m *BuddyBlockMetadata) AllocationOffset(handle AllocationHandle) int {
	terminal := m.walk(handle, func(int32) {})
	return m.nodes[terminal].offset
}

// visit walks every leaf node in offset order
func (m *BuddyBlockMetadata) visit(index int32, depth, position uint64, visitor func(index int32, handle AllocationHandle) error) error {
	node := &m.nodes[index]
	if !node.isSplit() {
		return visitor(index, AllocationHandle{Depth: depth, Position: position})
	}

	left := node.left
	err := m.visit(left, depth+1, position<<1, visitor)
	if err != nil {
		return err
	}
	return m.visit(left+1, depth+1, position<<1|1, visitor)
}

func (m *BuddyBlockMetadata) VisitAllRegions(handleRegion func(handle AllocationHandle, offset int, size int, free bool) error) error {
	return m.visit(0, 0, 0, func(index int32, handle AllocationHandle) error {
		node := &m.nodes[index]
		if node.allocated {
			return handleRegion(handle, node.offset, node.size-node.free, false)
		}
		return handleRegion(handle, node.offset, node.size, true)
	})
}

func (m *BuddyBlockMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount++
	stats.BlockBytes += m.Size()
	stats.AllocationCount += m.allocCount
	stats.AllocationBytes += m.Size() - m.SumFreeSize()
}

func (m *BuddyBlockMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.BlockCount++
	stats.BlockBytes += m.Size()

	_ = m.visit(0, 0, 0, func(index int32, handle AllocationHandle) error {
		node := &m.nodes[index]
		if node.allocated {
			stats.AddAllocation(node.size-node.free, node.free)
		} else {
			stats.AddUnusedRange(node.size)
		}
		return nil
	})
}

func (m *BuddyBlockMetadata) BlockJsonData(json jwriter.ObjectState) {
	m.BlockMetadataBase.BlockJsonData(json, m.SumFreeSize(), m.allocCount, m.FreeRegionsCount())
	json.Name("Nodes").Int(m.NodeCount())
}

func (m *BuddyBlockMetadata) Validate() error {
	if len(m.nodes) == 0 {
		return errors.New("buddy metadata was not initialized")
	}
	root := &m.nodes[0]
	if root.offset != 0 || root.size != m.Size() {
		return errors.Errorf("root node covers [%d, %d) but the block is %d bytes", root.offset, root.offset+root.size, m.Size())
	}

	allocations := 0
	err := m.validateNode(0, 0, &allocations)
	if err != nil {
		return err
	}

	if allocations != m.allocCount {
		return errors.Errorf("found %d allocated nodes but the allocation count is %d", allocations, m.allocCount)
	}

	return nil
}

func (m *BuddyBlockMetadata) validateNode(index int32, depth int, allocations *int) error {
	node := &m.nodes[index]
	if depth > maxBuddyDepth {
		return errors.Errorf("node at offset %d is deeper than %d levels", node.offset, maxBuddyDepth)
	}
	if node.free < 0 || node.free > node.size {
		return errors.Errorf("node at offset %d has %d free bytes out of %d", node.offset, node.free, node.size)
	}

	if !node.isSplit() {
		if node.allocated {
			*allocations++
			if node.free == node.size {
				return errors.Errorf("allocated node at offset %d has no bytes carved", node.offset)
			}
		} else if node.free != node.size {
			return errors.Errorf("unallocated leaf at offset %d has %d free bytes out of %d", node.offset, node.free, node.size)
		}
		return nil
	}

	if node.allocated {
		return errors.Errorf("node at offset %d is both split and allocated", node.offset)
	}

	left := &m.nodes[node.left]
	right := &m.nodes[node.left+1]
	if left.offset != node.offset || right.offset != left.offset+left.size || left.size+right.size != node.size {
		return errors.Errorf("children of node at offset %d do not tile it: [%d, +%d) [%d, +%d)", node.offset, left.offset, left.size, right.offset, right.size)
	}
	if node.free != left.free+right.free {
		return errors.Errorf("node at offset %d has %d free bytes but its children have %d", node.offset, node.free, left.free+right.free)
	}
	if m.coalesce && node.free == node.size && !left.isSplit() && !right.isSplit() {
		return errors.Errorf("node at offset %d is entirely free but was not coalesced", node.offset)
	}

	err := m.validateNode(node.left, depth+1, allocations)
	if err != nil {
		return err
	}
	return m.validateNode(node.left+1, depth+1, allocations)
}
