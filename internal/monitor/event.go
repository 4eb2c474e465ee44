package monitor

import "github.com/roach88/hlaservices/internal/hla"

// EventType distinguishes the normalized callback variants.
type EventType int

const (
	// EventAttributesUpdated carries a reflected attribute set.
	EventAttributesUpdated EventType = iota + 1
	// EventInteractionReceived carries a received interaction.
	EventInteractionReceived
	// EventObjectRemoved carries a removed object instance.
	EventObjectRemoved

	// eventBarrier is internal; Sync uses it to wait for the loop.
	eventBarrier
)

// String returns the ledger name of the event type.
func (t EventType) String() string {
	switch t {
	case EventAttributesUpdated:
		return "attributes_updated"
	case EventInteractionReceived:
		return "interaction_received"
	case EventObjectRemoved:
		return "object_removed"
	case eventBarrier:
		return "barrier"
	default:
		return "unknown"
	}
}

// AttributesUpdated is the payload of every reflectAttributeValues overload.
type AttributesUpdated struct {
	Object hla.ObjectInstanceHandle
	Values hla.AttributeHandleValueMap
}

// InteractionReceived is the payload of every receiveInteraction overload.
type InteractionReceived struct {
	Class    hla.InteractionClassHandle
	Values   hla.ParameterHandleValueMap
	Producer hla.FederateHandle
}

// ObjectRemoved is the payload of every removeObjectInstance overload.
type ObjectRemoved struct {
	Object hla.ObjectInstanceHandle
}

// Event is one normalized callback. Exactly one payload is set, matching Type.
type Event struct {
	Type        EventType
	Seq         int64
	Attributes  *AttributesUpdated
	Interaction *InteractionReceived
	Removal     *ObjectRemoved

	done chan struct{}
}
