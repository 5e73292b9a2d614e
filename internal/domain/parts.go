package domain

// PartRequestPriority orders pending part requests for procurement.
type PartRequestPriority string

const (
	PartPriorityNormal PartRequestPriority = "normal"
	PartPriorityUrgent PartRequestPriority = "urgent"
)

// PartRequestStatus is a tagged variant: either no parts were requested, or
// a request exists with a priority. Replaces independent boolean flags.
type PartRequestStatus struct {
	Requested bool                `json:"requested"`
	Priority  PartRequestPriority `json:"priority,omitempty"`
}

// NoPartRequest is the zero variant.
func NoPartRequest() PartRequestStatus {
	return PartRequestStatus{}
}

// RequestedParts builds the Requested variant.
func RequestedParts(priority PartRequestPriority) PartRequestStatus {
	if priority == "" {
		priority = PartPriorityNormal
	}
	return PartRequestStatus{Requested: true, Priority: priority}
}
