package monitor

import (
	"github.com/roach88/hlaservices/internal/hla"
)

// arm asks the RTI to report handle's service invocations: subscribe to
// HLAreportServiceInvocation, publish HLAsetServiceReporting and send one
// request. Any RTI failure along the way is a single setup error; there is
// no retry.
func (m *Monitor) arm(handle hla.FederateHandle) error {
	h := m.handles

	if err := m.rti.SubscribeInteractionClass(h.ReportClass); err != nil {
		return setupError("subscribe "+hla.ReportServiceInvocation, err)
	}
	if err := m.rti.PublishInteractionClass(h.SetReportingClass); err != nil {
		return setupError("publish "+hla.SetServiceReporting, err)
	}

	values := hla.ParameterHandleValueMap{
		h.SetReportingFederate: handle.Clone(),
		h.SetReportingState:    hla.EncodeBoolean(true),
	}
	if err := m.rti.SendInteraction(h.SetReportingClass, values, nil); err != nil {
		return setupError("send "+hla.SetServiceReporting, err)
	}
	return nil
}
