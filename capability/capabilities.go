package capability

import "github.com/vkngwrapper/core/v2/common"

// Capabilities is a bitset describing what work a queue family accepts
type Capabilities int32

var capabilitiesMapping = common.NewFlagStringMapping[Capabilities]()

func (c Capabilities) Register(str string) {
	capabilitiesMapping.Register(c, str)
}
func (c Capabilities) String() string {
	return capabilitiesMapping.FlagsToString(c)
}

const (
	// CapabilityGraphics indicates the queue family accepts draw commands
	CapabilityGraphics Capabilities = 1 << iota
	// CapabilityCompute indicates the queue family accepts dispatch commands
	CapabilityCompute
	// CapabilityTransfer indicates the queue family accepts copy commands
	CapabilityTransfer
	// CapabilityPresent indicates the queue family can present to the engine's surface
	CapabilityPresent
)

func init() {
	CapabilityGraphics.Register("CapabilityGraphics")
	CapabilityCompute.Register("CapabilityCompute")
	CapabilityTransfer.Register("CapabilityTransfer")
	CapabilityPresent.Register("CapabilityPresent")
}

// Has returns true if every bit of required is present in c
func (c Capabilities) Has(required Capabilities) bool {
	return c&required == required
}

// Each calls the provided callback once for each individual capability bit set in c, lowest bit first
func (c Capabilities) Each(callback func(single Capabilities)) {
	for bit := CapabilityGraphics; bit <= CapabilityPresent; bit <<= 1 {
		if c&bit != 0 {
			callback(bit)
		}
	}
}
