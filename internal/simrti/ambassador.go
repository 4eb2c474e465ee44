package simrti

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/hlaservices/internal/hla"
)

var _ hla.RTIAmbassador = (*Ambassador)(nil)

// Ambassador is one federate's connection to the RTI.
type Ambassador struct {
	rti *RTI

	callbacks hla.FederateAmbassador
	settings  string
	connected bool

	fed    *federation
	name   string
	handle hla.FederateHandle
	object hla.ObjectInstanceHandle

	objectAttrs  map[hla.ObjectClassHandle]map[hla.AttributeHandle]bool
	interactions map[hla.InteractionClassHandle]bool
	published    map[hla.InteractionClassHandle]bool
	discovered   map[hla.ObjectInstanceHandle]bool
}

// Name returns the federate name used at join, or "".
func (a *Ambassador) Name() string {
	a.rti.mu.Lock()
	defer a.rti.mu.Unlock()
	return a.name
}

// Handle returns the encoded federate handle, or nil when not joined.
func (a *Ambassador) Handle() hla.FederateHandle {
	a.rti.mu.Lock()
	defer a.rti.mu.Unlock()
	return a.handle.Clone()
}

// Object returns the HLAfederate object instance registered at join.
func (a *Ambassador) Object() hla.ObjectInstanceHandle {
	a.rti.mu.Lock()
	defer a.rti.mu.Unlock()
	return a.object
}

// Settings returns the settings designator passed to Connect.
func (a *Ambassador) Settings() string {
	a.rti.mu.Lock()
	defer a.rti.mu.Unlock()
	return a.settings
}

// Connect implements hla.FederationManager. A nil callback target is
// accepted for federates that never subscribe.
func (a *Ambassador) Connect(federate hla.FederateAmbassador, settingsDesignator string) error {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpConnect); err != nil {
		return err
	}
	if a.connected {
		return hla.ErrAlreadyConnected
	}
	a.callbacks = federate
	a.settings = settingsDesignator
	a.connected = true
	return nil
}

// Disconnect implements hla.FederationManager.
func (a *Ambassador) Disconnect() error {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpDisconnect); err != nil {
		return err
	}
	if !a.connected {
		return hla.ErrNotConnected
	}
	if a.fed != nil {
		return hla.ErrStillJoined
	}
	a.connected = false
	return nil
}

// CreateFederationExecution implements hla.FederationManager.
func (a *Ambassador) CreateFederationExecution(federationName string, fomModules []string) error {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpCreateFederationExecution); err != nil {
		return err
	}
	if !a.connected {
		return hla.ErrNotConnected
	}
	if _, ok := r.federations[federationName]; ok {
		return fmt.Errorf("%s: %w", federationName, hla.ErrFederationExists)
	}
	r.nextObject++
	r.federations[federationName] = &federation{
		name:       federationName,
		fomModules: append([]string(nil), fomModules...),
		object:     hla.ObjectInstanceHandle(fmt.Sprintf("HLAfederation-%d", r.nextObject)),
		reporting:  make(map[string]bool),
	}
	return nil
}

// DestroyFederationExecution implements hla.FederationManager.
func (a *Ambassador) DestroyFederationExecution(federationName string) error {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(OpDestroyFederationExecution); err != nil {
		return err
	}
	if !a.connected {
		return hla.ErrNotConnected
	}
	fed, ok := r.federations[federationName]
	if !ok {
		return fmt.Errorf("%s: %w", federationName, hla.ErrFederationNotFound)
	}
	if len(fed.members) > 0 {
		return fmt.Errorf("%s: %w", federationName, hla.ErrFederatesJoined)
	}
	delete(r.federations, federationName)
	return nil
}

// JoinFederationExecution implements hla.FederationManager. Joining
// registers an HLAfederate object that is discovered by every subscriber.
func (a *Ambassador) JoinFederationExecution(federateName, federateType, federationName string) (hla.FederateHandle, error) {
	r := a.rti
	var out outbox

	r.mu.Lock()
	if err := r.takeFailure(OpJoinFederationExecution); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if !a.connected {
		r.mu.Unlock()
		return nil, hla.ErrNotConnected
	}
	if a.fed != nil {
		r.mu.Unlock()
		return nil, hla.ErrStillJoined
	}
	fed, ok := r.federations[federationName]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", federationName, hla.ErrFederationNotFound)
	}

	r.nextFederate++
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, r.nextFederate)
	r.nextObject++

	a.fed = fed
	a.name = federateName
	a.handle = hla.EncodeHandle(raw)
	a.object = hla.ObjectInstanceHandle(fmt.Sprintf("HLAfederate-%d", r.nextObject))
	fed.members = append(fed.members, a)

	name := hla.MustEncodeUnicodeString(federateName)
	for _, m := range fed.members {
		r.reflectFederate(&out, m, a, name)
	}
	handle := a.handle.Clone()
	r.mu.Unlock()

	out.flush()
	return handle, nil
}

// ResignFederationExecution implements hla.FederationManager. The resign is
// reported if reporting is on for this federate, then its HLAfederate object
// is removed from every subscriber.
func (a *Ambassador) ResignFederationExecution() error {
	r := a.rti
	var out outbox

	r.mu.Lock()
	if err := r.takeFailure(OpResignFederationExecution); err != nil {
		r.mu.Unlock()
		return err
	}
	if a.fed == nil {
		r.mu.Unlock()
		return hla.ErrNotExecutionMember
	}
	fed := a.fed
	r.reportInvocation(&out, a, hla.MustEncodeUnicodeString(OpResignFederationExecution), hla.EncodeBoolean(true))

	for _, m := range fed.members {
		if m.discovered[a.object] {
			delete(m.discovered, a.object)
			if cb := m.callbacks; cb != nil {
				object := a.object
				out.add(func() { cb.RemoveObjectInstance(object, hla.CallbackInfo{}) })
			}
		}
	}
	fed.remove(a)
	delete(fed.reporting, a.handle.String())
	a.fed = nil
	a.objectAttrs = make(map[hla.ObjectClassHandle]map[hla.AttributeHandle]bool)
	a.interactions = make(map[hla.InteractionClassHandle]bool)
	a.published = make(map[hla.InteractionClassHandle]bool)
	a.discovered = make(map[hla.ObjectInstanceHandle]bool)
	r.mu.Unlock()

	out.flush()
	return nil
}

// GetObjectClassHandle implements hla.NameResolver.
func (a *Ambassador) GetObjectClassHandle(name string) (hla.ObjectClassHandle, error) {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMember(a, OpGetObjectClassHandle); err != nil {
		return 0, err
	}
	h, ok := objectClasses[name]
	if !ok {
		return 0, fmt.Errorf("object class %q: %w", name, hla.ErrNameNotFound)
	}
	return h, nil
}

// GetAttributeHandle implements hla.NameResolver.
func (a *Ambassador) GetAttributeHandle(class hla.ObjectClassHandle, name string) (hla.AttributeHandle, error) {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMember(a, OpGetAttributeHandle); err != nil {
		return 0, err
	}
	attrs, ok := attributes[class]
	if !ok {
		return 0, fmt.Errorf("object class %d: %w", class, hla.ErrInvalidHandle)
	}
	h, ok := attrs[name]
	if !ok {
		return 0, fmt.Errorf("attribute %q: %w", name, hla.ErrNameNotFound)
	}
	return h, nil
}

// GetInteractionClassHandle implements hla.NameResolver. Qualified and
// unqualified names are both accepted.
func (a *Ambassador) GetInteractionClassHandle(name string) (hla.InteractionClassHandle, error) {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMember(a, OpGetInteractionClassHandle); err != nil {
		return 0, err
	}
	h, ok := interactionClasses[stripRoot(name)]
	if !ok {
		return 0, fmt.Errorf("interaction class %q: %w", name, hla.ErrNameNotFound)
	}
	return h, nil
}

// GetInteractionClassName implements hla.NameResolver.
func (a *Ambassador) GetInteractionClassName(class hla.InteractionClassHandle) (string, error) {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMember(a, OpGetInteractionClassName); err != nil {
		return "", err
	}
	name, ok := interactionNames[class]
	if !ok {
		return "", fmt.Errorf("interaction class %d: %w", class, hla.ErrInvalidHandle)
	}
	if r.qualify {
		return interactionRoot + name, nil
	}
	return name, nil
}

// GetParameterHandle implements hla.NameResolver.
func (a *Ambassador) GetParameterHandle(class hla.InteractionClassHandle, name string) (hla.ParameterHandle, error) {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMember(a, OpGetParameterHandle); err != nil {
		return 0, err
	}
	params, ok := parameters[class]
	if !ok {
		return 0, fmt.Errorf("interaction class %d: %w", class, hla.ErrInvalidHandle)
	}
	h, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("parameter %q: %w", name, hla.ErrNameNotFound)
	}
	return h, nil
}

// SubscribeObjectClassAttributes implements hla.DeclarationManager.
// Existing instances of the class are discovered and reflected at once.
func (a *Ambassador) SubscribeObjectClassAttributes(class hla.ObjectClassHandle, attrs []hla.AttributeHandle) error {
	r := a.rti
	var out outbox

	r.mu.Lock()
	if err := r.checkMember(a, OpSubscribeObjectClassAttributes); err != nil {
		r.mu.Unlock()
		return err
	}
	known, ok := attributes[class]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("object class %d: %w", class, hla.ErrInvalidHandle)
	}
	set := a.objectAttrs[class]
	if set == nil {
		set = make(map[hla.AttributeHandle]bool)
		a.objectAttrs[class] = set
	}
	for _, attr := range attrs {
		if !containsAttribute(known, attr) {
			r.mu.Unlock()
			return fmt.Errorf("attribute %d: %w", attr, hla.ErrInvalidHandle)
		}
		set[attr] = true
	}

	switch class {
	case federateClass:
		for _, m := range a.fed.members {
			r.reflectFederate(&out, a, m, hla.MustEncodeUnicodeString(m.name))
		}
	case federationClass:
		r.reflectFederation(&out, a.fed, a)
	}
	r.mu.Unlock()

	out.flush()
	return nil
}

// SubscribeInteractionClass implements hla.DeclarationManager.
func (a *Ambassador) SubscribeInteractionClass(class hla.InteractionClassHandle) error {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMember(a, OpSubscribeInteractionClass); err != nil {
		return err
	}
	if _, ok := interactionNames[class]; !ok {
		return fmt.Errorf("interaction class %d: %w", class, hla.ErrInvalidHandle)
	}
	a.interactions[class] = true
	return nil
}

// PublishInteractionClass implements hla.DeclarationManager.
func (a *Ambassador) PublishInteractionClass(class hla.InteractionClassHandle) error {
	r := a.rti
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMember(a, OpPublishInteractionClass); err != nil {
		return err
	}
	if _, ok := interactionNames[class]; !ok {
		return fmt.Errorf("interaction class %d: %w", class, hla.ErrInvalidHandle)
	}
	a.published[class] = true
	return nil
}

// SendInteraction implements hla.DeclarationManager. HLAsetServiceReporting
// is consumed by the MOM; other classes are delivered to subscribers.
func (a *Ambassador) SendInteraction(class hla.InteractionClassHandle, values hla.ParameterHandleValueMap, tag []byte) error {
	r := a.rti
	var out outbox

	r.mu.Lock()
	if err := r.checkMember(a, OpSendInteraction); err != nil {
		r.mu.Unlock()
		return err
	}
	name, ok := interactionNames[class]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("interaction class %d: %w", class, hla.ErrInvalidHandle)
	}
	if !a.published[class] {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", name, hla.ErrNotPublished)
	}
	r.sent = append(r.sent, SentInteraction{Sender: a.name, Class: name, Values: copyParameters(values)})

	if class == setReportingClass {
		r.setServiceReporting(a.fed, values)
	} else {
		for _, m := range a.fed.members {
			if m == a || !m.interactions[class] || m.callbacks == nil {
				continue
			}
			cb, v := m.callbacks, copyParameters(values)
			info := hla.CallbackInfo{Tag: tag, Producer: a.handle.Clone()}
			out.add(func() { cb.ReceiveInteraction(class, v, info) })
		}
	}
	r.mu.Unlock()

	out.flush()
	return nil
}

// Invoke simulates a service call by this federate. It is reported to
// subscribers of HLAreportServiceInvocation when reporting is on.
func (a *Ambassador) Invoke(service string, success bool) error {
	encoded, err := hla.EncodeUnicodeString(service)
	if err != nil {
		return err
	}
	return a.InvokeRaw(encoded, hla.EncodeBoolean(success))
}

// InvokeRaw is Invoke with pre-encoded parameters, for malformed payloads.
func (a *Ambassador) InvokeRaw(service, success []byte) error {
	r := a.rti
	var out outbox

	r.mu.Lock()
	if a.fed == nil {
		r.mu.Unlock()
		return hla.ErrNotExecutionMember
	}
	r.reportInvocation(&out, a, service, success)
	r.mu.Unlock()

	out.flush()
	return nil
}

// Redeclare reflects a new HLAfederateName for this federate's object.
func (a *Ambassador) Redeclare(name string) error {
	encoded, err := hla.EncodeUnicodeString(name)
	if err != nil {
		return err
	}
	return a.RedeclareRaw(encoded)
}

// RedeclareRaw reflects raw HLAfederateName bytes along with the handle.
func (a *Ambassador) RedeclareRaw(name []byte) error {
	r := a.rti
	var out outbox

	r.mu.Lock()
	if a.fed == nil {
		r.mu.Unlock()
		return hla.ErrNotExecutionMember
	}
	for _, m := range a.fed.members {
		r.reflectFederate(&out, m, a, name)
	}
	r.mu.Unlock()

	out.flush()
	return nil
}

// checkMember consumes an injected failure for op and requires a joined
// federate. Caller holds r.mu.
func (r *RTI) checkMember(a *Ambassador, op string) error {
	if err := r.takeFailure(op); err != nil {
		return err
	}
	if !a.connected {
		return hla.ErrNotConnected
	}
	if a.fed == nil {
		return hla.ErrNotExecutionMember
	}
	return nil
}

// reflectFederate delivers subject's HLAfederate object to to, discovering
// it first if needed. Only subscribed attributes are reflected.
// Caller holds r.mu.
func (r *RTI) reflectFederate(out *outbox, to, subject *Ambassador, name []byte) {
	attrs := to.objectAttrs[federateClass]
	if len(attrs) == 0 {
		return
	}

	values := hla.AttributeHandleValueMap{}
	if attrs[federateNameAttr] {
		values[federateNameAttr] = append([]byte(nil), name...)
	}
	if attrs[federateHandleAttr] {
		values[federateHandleAttr] = subject.handle.Clone()
	}
	if attrs[federateTypeAttr] {
		values[federateTypeAttr] = hla.MustEncodeUnicodeString("scripted")
	}

	cb := to.callbacks
	object := subject.object
	if !to.discovered[object] {
		to.discovered[object] = true
		if cb != nil {
			instanceName := string(object)
			out.add(func() { cb.DiscoverObjectInstance(object, federateClass, instanceName) })
		}
	}
	if cb != nil && len(values) > 0 {
		out.add(func() { cb.ReflectAttributeValues(object, values, hla.CallbackInfo{}) })
	}
}

// reflectFederation delivers the HLAfederation object to to.
// Caller holds r.mu.
func (r *RTI) reflectFederation(out *outbox, fed *federation, to *Ambassador) {
	attrs := to.objectAttrs[federationClass]
	if len(attrs) == 0 {
		return
	}

	values := hla.AttributeHandleValueMap{}
	if attrs[federationNameAttr] {
		values[federationNameAttr] = hla.MustEncodeUnicodeString(fed.name)
	}
	if attrs[rtiVersionAttr] {
		values[rtiVersionAttr] = hla.MustEncodeUnicodeString(r.version)
	}

	cb := to.callbacks
	object := fed.object
	if !to.discovered[object] {
		to.discovered[object] = true
		if cb != nil {
			out.add(func() { cb.DiscoverObjectInstance(object, federationClass, string(object)) })
		}
	}
	if cb != nil && len(values) > 0 {
		out.add(func() { cb.ReflectAttributeValues(object, values, hla.CallbackInfo{}) })
	}
}

// setServiceReporting applies an HLAsetServiceReporting request. Malformed
// requests and unknown federates are ignored, as the MOM reports those
// through its own exception interaction. Caller holds r.mu.
func (r *RTI) setServiceReporting(fed *federation, values hla.ParameterHandleValueMap) {
	handle, ok := values[setFederateParam]
	if !ok {
		return
	}
	state, err := hla.DecodeBoolean(values[setStateParam])
	if err != nil {
		return
	}
	if fed.member(handle) == nil {
		return
	}
	fed.reporting[hla.FederateHandle(handle).String()] = state
}

// reportInvocation emits HLAreportServiceInvocation for subject when its
// reporting is on. Caller holds r.mu.
func (r *RTI) reportInvocation(out *outbox, subject *Ambassador, service, success []byte) {
	fed := subject.fed
	if !fed.reporting[subject.handle.String()] {
		return
	}
	for _, m := range fed.members {
		if !m.interactions[reportClass] || m.callbacks == nil {
			continue
		}
		cb := m.callbacks
		values := hla.ParameterHandleValueMap{
			reportFederateParam: subject.handle.Clone(),
			reportServiceParam:  append([]byte(nil), service...),
			reportSuccessParam:  append([]byte(nil), success...),
		}
		out.add(func() { cb.ReceiveInteraction(reportClass, values, hla.CallbackInfo{}) })
	}
}

func containsAttribute(known map[string]hla.AttributeHandle, attr hla.AttributeHandle) bool {
	for _, h := range known {
		if h == attr {
			return true
		}
	}
	return false
}

func copyParameters(values hla.ParameterHandleValueMap) hla.ParameterHandleValueMap {
	out := make(hla.ParameterHandleValueMap, len(values))
	for k, v := range values {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
