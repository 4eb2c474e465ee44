package monitor

import (
	"strings"

	"github.com/roach88/hlaservices/internal/hla"
	"github.com/roach88/hlaservices/internal/observation"
)

// ServiceInvocationReport is one decoded HLAreportServiceInvocation.
type ServiceInvocationReport struct {
	Federate hla.FederateHandle
	Service  string
	Success  bool
}

// DecodeReport decodes the report parameters. The federate parameter is
// optional; service and success indicator are required.
func DecodeReport(h FederationHandles, values hla.ParameterHandleValueMap) (ServiceInvocationReport, error) {
	var r ServiceInvocationReport

	raw, ok := values[h.ReportSuccess]
	if !ok {
		return r, &hla.DecodeError{DataType: hla.SuccessIndicatorParameter, Reason: "parameter missing"}
	}
	success, err := hla.DecodeBoolean(raw)
	if err != nil {
		return r, err
	}

	raw, ok = values[h.ReportService]
	if !ok {
		return r, &hla.DecodeError{DataType: hla.ServiceParameter, Reason: "parameter missing"}
	}
	service, err := hla.DecodeUnicodeString(raw)
	if err != nil {
		return r, err
	}

	r.Service = service
	r.Success = success
	if fed, ok := values[h.ReportFederate]; ok {
		r.Federate = hla.FederateHandle(fed).Clone()
	}
	return r, nil
}

// handleInteraction filters on the report class name, decodes the report
// and marks the service when the invocation succeeded.
func (m *Monitor) handleInteraction(ev *InteractionReceived, seq int64) (string, error) {
	name, err := m.rti.GetInteractionClassName(ev.Class)
	if err != nil {
		return OutcomeProtocolError, protocolError("interaction class name", err)
	}
	if !strings.HasSuffix(name, hla.ReportServiceInvocationSuffix) {
		m.logger.Debug("ignoring interaction", "class", name)
		return OutcomeIgnoredClass, nil
	}

	report, err := DecodeReport(m.handles, ev.Values)
	if err != nil {
		return OutcomeDecodeError, decodeError("decode "+hla.ReportServiceInvocationSuffix, err)
	}

	if !report.Federate.IsZero() && m.identity != nil && !report.Federate.Equal(m.identity.Handle) {
		m.logger.Debug("report for another federate", "federate", report.Federate.String(), "service", report.Service)
		return OutcomeForeignFederate, nil
	}
	if !report.Success {
		m.logger.Debug("failed invocation", "service", report.Service)
		return OutcomeFailedInvocation, nil
	}

	switch m.mark(report.Service, observation.SourceReport, seq) {
	case observation.Applied:
		return OutcomeApplied, nil
	case observation.AlreadyObserved:
		return OutcomeAlreadyObserved, nil
	default:
		m.logger.Debug("service not in catalogue", "service", report.Service)
		return OutcomeUnknownService, nil
	}
}
