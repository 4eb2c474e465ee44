package monitor

import (
	"fmt"

	"github.com/roach88/hlaservices/internal/hla"
)

// FederationHandles are the MOM handles the monitor needs, resolved once.
type FederationHandles struct {
	FederateClass  hla.ObjectClassHandle
	FederateName   hla.AttributeHandle
	FederateHandle hla.AttributeHandle

	FederationClass hla.ObjectClassHandle
	RTIVersion      hla.AttributeHandle

	ReportClass    hla.InteractionClassHandle
	ReportFederate hla.ParameterHandle
	ReportService  hla.ParameterHandle
	ReportSuccess  hla.ParameterHandle

	SetReportingClass    hla.InteractionClassHandle
	SetReportingFederate hla.ParameterHandle
	SetReportingState    hla.ParameterHandle
}

// resolver threads the first lookup error through a run of lookups.
type resolver struct {
	rti hla.NameResolver
	err error
}

func (r *resolver) objectClass(name string) hla.ObjectClassHandle {
	if r.err != nil {
		return 0
	}
	h, err := r.rti.GetObjectClassHandle(name)
	if err != nil {
		r.err = setupError(fmt.Sprintf("resolve %s", name), err)
	}
	return h
}

func (r *resolver) attribute(class hla.ObjectClassHandle, name string) hla.AttributeHandle {
	if r.err != nil {
		return 0
	}
	h, err := r.rti.GetAttributeHandle(class, name)
	if err != nil {
		r.err = setupError(fmt.Sprintf("resolve %s", name), err)
	}
	return h
}

func (r *resolver) interactionClass(name string) hla.InteractionClassHandle {
	if r.err != nil {
		return 0
	}
	h, err := r.rti.GetInteractionClassHandle(name)
	if err != nil {
		r.err = setupError(fmt.Sprintf("resolve %s", name), err)
	}
	return h
}

func (r *resolver) parameter(class hla.InteractionClassHandle, name string) hla.ParameterHandle {
	if r.err != nil {
		return 0
	}
	h, err := r.rti.GetParameterHandle(class, name)
	if err != nil {
		r.err = setupError(fmt.Sprintf("resolve %s", name), err)
	}
	return h
}

// ResolveHandles looks up every MOM name the monitor uses. The first failure
// is returned as a setup error; no lookup is retried.
func ResolveHandles(rti hla.NameResolver) (FederationHandles, error) {
	r := &resolver{rti: rti}
	var h FederationHandles

	h.FederateClass = r.objectClass(hla.FederateClass)
	h.FederateName = r.attribute(h.FederateClass, hla.FederateNameAttribute)
	h.FederateHandle = r.attribute(h.FederateClass, hla.FederateHandleAttribute)

	h.FederationClass = r.objectClass(hla.FederationClass)
	h.RTIVersion = r.attribute(h.FederationClass, hla.RTIVersionAttribute)

	h.ReportClass = r.interactionClass(hla.ReportServiceInvocation)
	h.ReportFederate = r.parameter(h.ReportClass, hla.FederateParameter)
	h.ReportService = r.parameter(h.ReportClass, hla.ServiceParameter)
	h.ReportSuccess = r.parameter(h.ReportClass, hla.SuccessIndicatorParameter)

	h.SetReportingClass = r.interactionClass(hla.SetServiceReporting)
	h.SetReportingFederate = r.parameter(h.SetReportingClass, hla.FederateParameter)
	h.SetReportingState = r.parameter(h.SetReportingClass, hla.ReportingStateParameter)

	if r.err != nil {
		return FederationHandles{}, r.err
	}
	return h, nil
}

// subscribeIdentity subscribes to the attributes that reveal federates and
// the federation's RTI version.
func subscribeIdentity(rti hla.DeclarationManager, h FederationHandles) error {
	if err := rti.SubscribeObjectClassAttributes(h.FederateClass, []hla.AttributeHandle{h.FederateName, h.FederateHandle}); err != nil {
		return setupError("subscribe "+hla.FederateClass, err)
	}
	if err := rti.SubscribeObjectClassAttributes(h.FederationClass, []hla.AttributeHandle{h.RTIVersion}); err != nil {
		return setupError("subscribe "+hla.FederationClass, err)
	}
	return nil
}
