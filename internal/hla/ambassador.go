package hla

import "errors"

// Sentinel errors an RTI binding maps its exception catalogue onto.
var (
	ErrNameNotFound          = errors.New("name not found")
	ErrInvalidHandle         = errors.New("invalid handle")
	ErrNotConnected          = errors.New("not connected")
	ErrNotExecutionMember    = errors.New("federate not execution member")
	ErrAlreadyConnected      = errors.New("already connected")
	ErrFederationExists      = errors.New("federation execution already exists")
	ErrFederationNotFound    = errors.New("federation execution does not exist")
	ErrNotPublished          = errors.New("interaction class not published")
	ErrAlreadyReportingMOM   = errors.New("federate service invocations are being reported via MOM")
	ErrRTIInternal           = errors.New("RTI internal error")
	ErrSaveOrRestoreInFlight = errors.New("save or restore in progress")
	ErrFederatesJoined       = errors.New("federates currently joined")
	ErrStillJoined           = errors.New("federate is execution member")
)

// OrderType is the delivery order of a callback.
type OrderType int

const (
	Receive OrderType = iota
	Timestamp
)

// CallbackInfo carries the optional fields that distinguish the overloaded
// reflect/receive/remove callbacks of the standard. Bindings fill in what the
// RTI supplied and leave the rest zero.
type CallbackInfo struct {
	Tag      []byte
	Order    OrderType
	Time     int64
	HasTime  bool
	Producer FederateHandle
}

// FederateAmbassador is the callback contract an RTI drives. Callbacks may be
// delivered on a goroutine other than the one that called into the RTI.
// Implementations must not block.
type FederateAmbassador interface {
	DiscoverObjectInstance(object ObjectInstanceHandle, class ObjectClassHandle, name string)
	ReflectAttributeValues(object ObjectInstanceHandle, values AttributeHandleValueMap, info CallbackInfo)
	ReceiveInteraction(class InteractionClassHandle, values ParameterHandleValueMap, info CallbackInfo)
	RemoveObjectInstance(object ObjectInstanceHandle, info CallbackInfo)
}

// NameResolver resolves MOM names to handles and back.
type NameResolver interface {
	GetObjectClassHandle(name string) (ObjectClassHandle, error)
	GetAttributeHandle(class ObjectClassHandle, name string) (AttributeHandle, error)
	GetInteractionClassHandle(name string) (InteractionClassHandle, error)
	GetInteractionClassName(class InteractionClassHandle) (string, error)
	GetParameterHandle(class InteractionClassHandle, name string) (ParameterHandle, error)
}

// DeclarationManager covers the publish/subscribe and send services.
type DeclarationManager interface {
	SubscribeObjectClassAttributes(class ObjectClassHandle, attributes []AttributeHandle) error
	SubscribeInteractionClass(class InteractionClassHandle) error
	PublishInteractionClass(class InteractionClassHandle) error
	SendInteraction(class InteractionClassHandle, values ParameterHandleValueMap, tag []byte) error
}

// FederationManager covers connection and federation execution lifecycle.
type FederationManager interface {
	Connect(federate FederateAmbassador, settingsDesignator string) error
	Disconnect() error
	CreateFederationExecution(federationName string, fomModules []string) error
	DestroyFederationExecution(federationName string) error
	JoinFederationExecution(federateName, federateType, federationName string) (FederateHandle, error)
	ResignFederationExecution() error
}

// RTIAmbassador is the full RTI surface used by the test case.
type RTIAmbassador interface {
	FederationManager
	NameResolver
	DeclarationManager
}
