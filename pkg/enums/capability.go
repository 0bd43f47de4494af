package enums

// Capability is a coarse permission checked once per request.
type Capability string

const (
	CapabilityView       Capability = "view"
	CapabilityCreate     Capability = "create"
	CapabilityApprove    Capability = "approve"
	CapabilityAdminister Capability = "administer"
)

func (c Capability) String() string {
	return string(c)
}
