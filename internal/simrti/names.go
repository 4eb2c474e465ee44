package simrti

import "github.com/roach88/hlaservices/internal/hla"

const interactionRoot = "HLAinteractionRoot."

// ReportInteractionSubscription is a MOM report class the monitor does not
// care about. Tests use it to exercise class filtering.
const ReportInteractionSubscription = "HLAmanager.HLAfederate.HLAreport.HLAreportInteractionSubscription"

const (
	federateClass   hla.ObjectClassHandle = 1
	federationClass hla.ObjectClassHandle = 2

	federateNameAttr   hla.AttributeHandle = 101
	federateHandleAttr hla.AttributeHandle = 102
	federateTypeAttr   hla.AttributeHandle = 103
	federationNameAttr hla.AttributeHandle = 201
	rtiVersionAttr     hla.AttributeHandle = 202

	reportClass       hla.InteractionClassHandle = 10
	setReportingClass hla.InteractionClassHandle = 11
	subscriptionClass hla.InteractionClassHandle = 12

	reportFederateParam  hla.ParameterHandle = 1001
	reportServiceParam   hla.ParameterHandle = 1002
	reportSuccessParam   hla.ParameterHandle = 1003
	reportExceptionParam hla.ParameterHandle = 1004
	setFederateParam     hla.ParameterHandle = 1101
	setStateParam        hla.ParameterHandle = 1102
	subscriptionFedParam hla.ParameterHandle = 1201
)

var objectClasses = map[string]hla.ObjectClassHandle{
	hla.FederateClass:   federateClass,
	hla.FederationClass: federationClass,
}

var attributes = map[hla.ObjectClassHandle]map[string]hla.AttributeHandle{
	federateClass: {
		hla.FederateNameAttribute:   federateNameAttr,
		hla.FederateHandleAttribute: federateHandleAttr,
		"HLAfederateType":           federateTypeAttr,
	},
	federationClass: {
		"HLAfederationName":     federationNameAttr,
		hla.RTIVersionAttribute: rtiVersionAttr,
	},
}

var interactionClasses = map[string]hla.InteractionClassHandle{
	hla.ReportServiceInvocation:   reportClass,
	hla.SetServiceReporting:       setReportingClass,
	ReportInteractionSubscription: subscriptionClass,
}

var interactionNames = map[hla.InteractionClassHandle]string{
	reportClass:       hla.ReportServiceInvocation,
	setReportingClass: hla.SetServiceReporting,
	subscriptionClass: ReportInteractionSubscription,
}

var parameters = map[hla.InteractionClassHandle]map[string]hla.ParameterHandle{
	reportClass: {
		hla.FederateParameter:         reportFederateParam,
		hla.ServiceParameter:          reportServiceParam,
		hla.SuccessIndicatorParameter: reportSuccessParam,
		"HLAexception":                reportExceptionParam,
	},
	setReportingClass: {
		hla.FederateParameter:       setFederateParam,
		hla.ReportingStateParameter: setStateParam,
	},
	subscriptionClass: {
		hla.FederateParameter: subscriptionFedParam,
	},
}

// stripRoot accepts both qualified and unqualified interaction names.
func stripRoot(name string) string {
	if len(name) > len(interactionRoot) && name[:len(interactionRoot)] == interactionRoot {
		return name[len(interactionRoot):]
	}
	return name
}
