package devres

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/devres/memutils"
	"github.com/vkngwrapper/arsenal/devres/memutils/metadata"
)

// DeviceStatistics sums the Blocks and suballocations of a Device, in total and per heap
type DeviceStatistics struct {
	Total memutils.DetailedStatistics
	// Heaps holds one entry per heap, in the order the backend reported them
	Heaps []memutils.DetailedStatistics
}

// liveBlocks returns the Device's Blocks ordered by id. Blocks are locked individually after
// the device mutex is released.
func (d *Device) liveBlocks() []*Block {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	blocks := make([]*Block, 0, d.blocks.Count())
	d.blocks.Iter(func(id int, block *Block) bool {
		blocks = append(blocks, block)
		return false
	})

	slices.SortFunc(blocks, func(left, right *Block) int {
		return cmp.Compare(left.id, right.id)
	})
	return blocks
}

// CalculateStatistics walks every live Block and reports detailed statistics about the
// allocated and unused ranges within them
func (d *Device) CalculateStatistics() DeviceStatistics {
	stats := DeviceStatistics{
		Heaps: make([]memutils.DetailedStatistics, d.snapshot.HeapCount()),
	}
	stats.Total.Clear()
	for i := range stats.Heaps {
		stats.Heaps[i].Clear()
	}

	for _, block := range d.liveBlocks() {
		block.mutex.Lock()
		if !block.destroyed {
			block.metadata.AddDetailedStatistics(&stats.Heaps[block.heapSlot])
		}
		block.mutex.Unlock()
	}

	for i := range stats.Heaps {
		stats.Total.AddDetailedStatistics(&stats.Heaps[i])
	}

	return stats
}

func printDetailedStatistics(json jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("BlockCount").Int(stats.BlockCount)
	json.Name("BlockBytes").Int(stats.BlockBytes)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("UnusedRangeCount").Int(stats.UnusedRangeCount)
	json.Name("PaddingBytes").Int(stats.PaddingBytes)

	if stats.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.UnusedRangeCount > 0 {
		json.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		json.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
}

// BuildStatsString produces a JSON document describing the Device's heaps, queue families,
// and fences. If detailed is true, every live Block's regions are listed as well.
func (d *Device) BuildStatsString(detailed bool) string {
	stats := d.CalculateStatistics()

	writer := jwriter.NewWriter()
	objState := writer.Object()

	totalObj := objState.Name("Total").Object()
	printDetailedStatistics(totalObj, &stats.Total)
	totalObj.End()

	d.writeHeaps(objState, &stats)
	d.writeQueueFamilies(objState)

	if detailed {
		blocksObj := objState.Name("Blocks").Object()
		for _, block := range d.liveBlocks() {
			block.writeJson(blocksObj)
		}
		blocksObj.End()
	}

	objState.End()
	return string(writer.Bytes())
}

func (d *Device) writeHeaps(json jwriter.ObjectState, stats *DeviceStatistics) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	heapsArray := json.Name("Heaps").Array()
	defer heapsArray.End()

	for slot, heap := range d.tracker.heaps {
		heapObj := heapsArray.Object()

		heapObj.Name("HeapIndex").Int(heap.HeapIndex)
		heapObj.Name("Size").Int(heap.Size)
		heapObj.Name("DeviceLocal").Bool(heap.DeviceLocal)
		heapObj.Name("HostVisible").Bool(heap.HostVisible)

		budget := d.tracker.budget(slot)
		budgetObj := heapObj.Name("Budget").Object()
		budgetObj.Name("BlockCount").Int(budget.Statistics.BlockCount)
		budgetObj.Name("BlockBytes").Int(budget.Statistics.BlockBytes)
		budgetObj.Name("AllocationCount").Int(budget.Statistics.AllocationCount)
		budgetObj.Name("AllocationBytes").Int(budget.Statistics.AllocationBytes)
		budgetObj.Name("BudgetBytes").Int(budget.Budget)
		budgetObj.End()

		statsObj := heapObj.Name("Stats").Object()
		printDetailedStatistics(statsObj, &stats.Heaps[slot])
		statsObj.End()

		heapObj.End()
	}
}

func (d *Device) writeQueueFamilies(json jwriter.ObjectState) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	json.Name("AllocationCount").Int(d.tracker.allocationCount)
	json.Name("Fences").Int(d.tracker.fences.Count())

	familiesArray := json.Name("QueueFamilies").Array()
	defer familiesArray.End()

	for slot := 0; slot < d.snapshot.QueueFamilyCount(); slot++ {
		family := d.snapshot.QueueFamily(slot)
		familyObj := familiesArray.Object()

		familyObj.Name("Index").Int(family.Index)
		familyObj.Name("Capabilities").String(family.Capabilities.String())
		familyObj.Name("Used").Bool(d.familyUsed[slot])

		claimsArray := familyObj.Name("Claims").Array()
		for queueIndex := 0; queueIndex < family.QueueCount; queueIndex++ {
			claims, _ := d.claims.Get(queueKey{family: family.Index, index: queueIndex})
			claimsArray.Int(claims)
		}
		claimsArray.End()

		familyObj.End()
	}
}

func (b *Block) writeJson(json jwriter.ObjectState) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return
	}

	blockObj := json.Name(strconv.Itoa(b.id)).Object()
	defer blockObj.End()

	blockObj.Name("Name").String(b.name)
	blockObj.Name("HeapIndex").Int(b.heapIndex)
	b.metadata.BlockJsonData(blockObj)

	suballocationsArray := blockObj.Name("Suballocations").Array()
	defer suballocationsArray.End()

	_ = b.metadata.VisitAllRegions(func(handle metadata.AllocationHandle, offset int, size int, free bool) error {
		obj := suballocationsArray.Object()
		defer obj.End()

		obj.Name("Offset").Int(offset)
		obj.Name("Size").Int(size)
		obj.Name("Free").Bool(free)
		if !free {
			obj.Name("Handle").String(handle.String())
		}
		return nil
	})
}

// FenceCount returns the number of fences cached by the Device
func (d *Device) FenceCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.tracker.fences.Count()
}
