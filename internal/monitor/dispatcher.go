package monitor

import (
	"log/slog"

	"github.com/roach88/hlaservices/internal/hla"
)

var _ hla.FederateAmbassador = (*dispatcher)(nil)

// dispatcher is the FederateAmbassador handed to the RTI. It folds every
// callback overload into one normalized Event and enqueues it; nothing else
// happens on the RTI's delivery goroutine.
type dispatcher struct {
	queue  *eventQueue
	clock  *Clock
	logger *slog.Logger
}

func (d *dispatcher) DiscoverObjectInstance(object hla.ObjectInstanceHandle, class hla.ObjectClassHandle, name string) {
	d.logger.Debug("object discovered", "object", object, "class", class, "name", name)
}

func (d *dispatcher) ReflectAttributeValues(object hla.ObjectInstanceHandle, values hla.AttributeHandleValueMap, _ hla.CallbackInfo) {
	copied := make(hla.AttributeHandleValueMap, len(values))
	for k, v := range values {
		copied[k] = append([]byte(nil), v...)
	}
	d.enqueue(Event{
		Type:       EventAttributesUpdated,
		Attributes: &AttributesUpdated{Object: object, Values: copied},
	})
}

func (d *dispatcher) ReceiveInteraction(class hla.InteractionClassHandle, values hla.ParameterHandleValueMap, info hla.CallbackInfo) {
	copied := make(hla.ParameterHandleValueMap, len(values))
	for k, v := range values {
		copied[k] = append([]byte(nil), v...)
	}
	d.enqueue(Event{
		Type:        EventInteractionReceived,
		Interaction: &InteractionReceived{Class: class, Values: copied, Producer: info.Producer.Clone()},
	})
}

func (d *dispatcher) RemoveObjectInstance(object hla.ObjectInstanceHandle, _ hla.CallbackInfo) {
	d.enqueue(Event{
		Type:    EventObjectRemoved,
		Removal: &ObjectRemoved{Object: object},
	})
}

func (d *dispatcher) enqueue(ev Event) {
	ev.Seq = d.clock.Next()
	if !d.queue.Enqueue(ev) {
		d.logger.Debug("event dropped after stop", "kind", ev.Type.String(), "seq", ev.Seq)
	}
}
