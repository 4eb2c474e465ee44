package hla

// MOM object classes and attributes used to detect federates and the federation.
const (
	FederateClass           = "HLAmanager.HLAfederate"
	FederateNameAttribute   = "HLAfederateName"
	FederateHandleAttribute = "HLAfederateHandle"
	FederationClass         = "HLAmanager.HLAfederation"
	RTIVersionAttribute     = "HLARTIversion"
)

// MOM interactions used to request and receive service invocation reports.
const (
	ReportServiceInvocation   = "HLAmanager.HLAfederate.HLAreport.HLAreportServiceInvocation"
	ServiceParameter          = "HLAservice"
	SuccessIndicatorParameter = "HLAsuccessIndicator"

	SetServiceReporting     = "HLAmanager.HLAfederate.HLAadjust.HLAsetServiceReporting"
	FederateParameter       = "HLAfederate"
	ReportingStateParameter = "HLAreportingState"
)

// ReportServiceInvocationSuffix is the unqualified class name matched against
// the names an RTI returns for received interactions. Some RTIs prefix the
// qualified name with HLAinteractionRoot, others do not.
const ReportServiceInvocationSuffix = "HLAreportServiceInvocation"
