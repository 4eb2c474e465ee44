package monitor

import (
	"context"

	"github.com/roach88/hlaservices/internal/hla"
)

// FederateIdentity is the tracked SUT. Once set it never changes.
type FederateIdentity struct {
	Name   string
	Handle hla.FederateHandle

	// Object is the HLAfederate instance that revealed the SUT. Removal of
	// this instance is the SUT leaving the federation.
	Object hla.ObjectInstanceHandle
}

// handleAttributes runs the identity resolver and the RTI version logger
// over one reflected attribute set.
func (m *Monitor) handleAttributes(ctx context.Context, ev *AttributesUpdated) (string, error) {
	outcome := OutcomeNoMatch

	if m.identity == nil {
		var err error
		outcome, err = m.resolveIdentity(ctx, ev)
		if err != nil {
			return OutcomeDecodeError, err
		}
	} else if m.hasIdentityAttributes(ev) {
		outcome = OutcomeIdentitySettled
	}

	if raw, ok := ev.Values[m.handles.RTIVersion]; ok {
		version, err := hla.DecodeUnicodeString(raw)
		if err != nil {
			return OutcomeDecodeError, decodeError("decode "+hla.RTIVersionAttribute, err)
		}
		m.logger.Debug("RTI version", "version", version)
		if outcome == OutcomeNoMatch {
			outcome = OutcomeRTIVersion
		}
	}
	return outcome, nil
}

func (m *Monitor) hasIdentityAttributes(ev *AttributesUpdated) bool {
	_, name := ev.Values[m.handles.FederateName]
	_, handle := ev.Values[m.handles.FederateHandle]
	return name || handle
}

// resolveIdentity adopts the federate in ev as the SUT when its declared
// name matches and it carries a non-empty handle. Either attribute may be
// absent. A name that fails to decode drops the whole event.
func (m *Monitor) resolveIdentity(ctx context.Context, ev *AttributesUpdated) (string, error) {
	var name string
	var hasName bool
	if raw, ok := ev.Values[m.handles.FederateName]; ok {
		decoded, err := hla.DecodeUnicodeString(raw)
		if err != nil {
			return "", decodeError("decode "+hla.FederateNameAttribute, err)
		}
		name, hasName = decoded, true
	}
	handle := hla.FederateHandle(ev.Values[m.handles.FederateHandle])

	if !hasName || name != m.sutName || handle.IsZero() {
		return OutcomeNoMatch, nil
	}

	identity := &FederateIdentity{Name: name, Handle: handle.Clone(), Object: ev.Object}
	m.mu.Lock()
	m.identity = identity
	m.mu.Unlock()

	m.logger.Info("following federate", "sut", name, "handle", identity.Handle.String(), "object", ev.Object)

	armed := true
	if err := m.arm(identity.Handle); err != nil {
		armed = false
		m.logger.Error("failed to arm service reporting", "sut", name, "error", err)
	}
	m.mu.Lock()
	m.armed = armed
	m.mu.Unlock()
	m.recorder.RecordArming(armed)

	if err := m.lifecycle.Discovered(ctx, armed); err != nil {
		m.logger.Error("lifecycle transition failed", "error", err)
	}
	return OutcomeIdentified, nil
}

// handleRemoval seeds the teardown services when the SUT's object goes away.
// Identity is compared on the canonical object instance handle.
func (m *Monitor) handleRemoval(ctx context.Context, ev *ObjectRemoved) (string, error) {
	if m.identity == nil || ev.Object != m.identity.Object {
		return OutcomeIgnoredObject, nil
	}

	m.logger.Info("followed federate removed", "sut", m.identity.Name, "object", ev.Object)
	if err := m.lifecycle.Removed(ctx); err != nil {
		return OutcomeIgnoredObject, protocolError("remove "+string(ev.Object), err)
	}
	return OutcomeSUTRemoved, nil
}
