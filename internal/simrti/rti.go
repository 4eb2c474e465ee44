// Package simrti is an in-memory RTI that implements the subset of the HLA
// management object model the service monitor relies on: federate and
// federation MOM objects, service invocation reporting and the
// HLAsetServiceReporting request.
//
// Callbacks are delivered synchronously on the goroutine that caused them,
// after the RTI lock is released. Every connection is an *Ambassador; a test
// creates one for the monitor and one per scripted federate.
package simrti

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/hlaservices/internal/hla"
)

// DefaultVersion is the HLARTIversion reflected when none is configured.
const DefaultVersion = "simrti 1516-2010"

// Operations that accept injected failures.
const (
	OpConnect                        = "connect"
	OpDisconnect                     = "disconnect"
	OpCreateFederationExecution      = "createFederationExecution"
	OpDestroyFederationExecution     = "destroyFederationExecution"
	OpJoinFederationExecution        = "joinFederationExecution"
	OpResignFederationExecution      = "resignFederationExecution"
	OpGetObjectClassHandle           = "getObjectClassHandle"
	OpGetAttributeHandle             = "getAttributeHandle"
	OpGetInteractionClassHandle      = "getInteractionClassHandle"
	OpGetInteractionClassName        = "getInteractionClassName"
	OpGetParameterHandle             = "getParameterHandle"
	OpSubscribeObjectClassAttributes = "subscribeObjectClassAttributes"
	OpSubscribeInteractionClass      = "subscribeInteractionClass"
	OpPublishInteractionClass        = "publishInteractionClass"
	OpSendInteraction                = "sendInteraction"
)

var operations = map[string]bool{
	OpConnect:                        true,
	OpDisconnect:                     true,
	OpCreateFederationExecution:      true,
	OpDestroyFederationExecution:     true,
	OpJoinFederationExecution:        true,
	OpResignFederationExecution:      true,
	OpGetObjectClassHandle:           true,
	OpGetAttributeHandle:             true,
	OpGetInteractionClassHandle:      true,
	OpGetInteractionClassName:        true,
	OpGetParameterHandle:             true,
	OpSubscribeObjectClassAttributes: true,
	OpSubscribeInteractionClass:      true,
	OpPublishInteractionClass:        true,
	OpSendInteraction:                true,
}

// Operations returns the operation names accepted by InjectFailure, sorted.
func Operations() []string {
	out := make([]string, 0, len(operations))
	for op := range operations {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// RTI is a shared in-memory federation runtime.
type RTI struct {
	mu sync.Mutex

	version     string
	qualify     bool
	federations map[string]*federation
	failures    map[string][]error

	nextFederate uint32
	nextObject   uint64
	sent         []SentInteraction
}

// SentInteraction records an interaction accepted by SendInteraction.
type SentInteraction struct {
	Sender string
	Class  string
	Values hla.ParameterHandleValueMap
}

// Option configures an RTI.
type Option func(*RTI)

// WithVersion sets the HLARTIversion attribute value.
func WithVersion(version string) Option {
	return func(r *RTI) {
		r.version = version
	}
}

// WithUnqualifiedNames makes GetInteractionClassName return names without
// the HLAinteractionRoot prefix, as some RTIs do.
func WithUnqualifiedNames() Option {
	return func(r *RTI) {
		r.qualify = false
	}
}

// New returns an empty RTI.
func New(opts ...Option) *RTI {
	r := &RTI{
		version:     DefaultVersion,
		qualify:     true,
		federations: make(map[string]*federation),
		failures:    make(map[string][]error),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewAmbassador returns an unconnected RTI ambassador bound to r.
func (r *RTI) NewAmbassador() *Ambassador {
	return &Ambassador{
		rti:          r,
		objectAttrs:  make(map[hla.ObjectClassHandle]map[hla.AttributeHandle]bool),
		interactions: make(map[hla.InteractionClassHandle]bool),
		published:    make(map[hla.InteractionClassHandle]bool),
		discovered:   make(map[hla.ObjectInstanceHandle]bool),
	}
}

// InjectFailure makes the next call of op fail with err, or with
// hla.ErrRTIInternal when err is nil. Injections queue up per operation.
func (r *RTI) InjectFailure(op string, err error) error {
	if !operations[op] {
		return fmt.Errorf("unknown RTI operation %q", op)
	}
	if err == nil {
		err = fmt.Errorf("injected %s failure: %w", op, hla.ErrRTIInternal)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = append(r.failures[op], err)
	return nil
}

// takeFailure pops an injected failure. Caller holds r.mu.
func (r *RTI) takeFailure(op string) error {
	queue := r.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	r.failures[op] = queue[1:]
	return err
}

// SetVersion changes HLARTIversion and reflects it to every subscriber.
func (r *RTI) SetVersion(version string) {
	var out outbox

	r.mu.Lock()
	r.version = version
	for _, fed := range r.federations {
		for _, m := range fed.members {
			r.reflectFederation(&out, fed, m)
		}
	}
	r.mu.Unlock()

	out.flush()
}

// Reporting reports whether service invocation reporting is enabled for the
// federate with the given encoded handle in federation.
func (r *RTI) Reporting(federation string, handle hla.FederateHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	fed, ok := r.federations[federation]
	return ok && fed.reporting[handle.String()]
}

// Federation reports whether a federation execution exists and how many
// federates are joined to it.
func (r *RTI) Federation(name string) (exists bool, joined int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fed, ok := r.federations[name]
	if !ok {
		return false, 0
	}
	return true, len(fed.members)
}

// FOMModules returns the FOM modules a federation was created with.
func (r *RTI) FOMModules(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	fed, ok := r.federations[name]
	if !ok {
		return nil
	}
	return append([]string(nil), fed.fomModules...)
}

// Sent returns the interactions accepted so far, in send order.
func (r *RTI) Sent() []SentInteraction {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SentInteraction, len(r.sent))
	copy(out, r.sent)
	return out
}

// federation is one federation execution.
type federation struct {
	name       string
	fomModules []string
	object     hla.ObjectInstanceHandle
	members    []*Ambassador
	reporting  map[string]bool
}

func (f *federation) remove(a *Ambassador) {
	for i, m := range f.members {
		if m == a {
			f.members = append(f.members[:i], f.members[i+1:]...)
			return
		}
	}
}

func (f *federation) member(handle hla.FederateHandle) *Ambassador {
	for _, m := range f.members {
		if m.handle.Equal(handle) {
			return m
		}
	}
	return nil
}

// outbox collects callbacks while r.mu is held so they run after unlock.
type outbox []func()

func (o *outbox) add(f func()) {
	*o = append(*o, f)
}

func (o outbox) flush() {
	for _, f := range o {
		f()
	}
}
