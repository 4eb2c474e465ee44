package hla

import (
	"bytes"
	"encoding/hex"
)

// ObjectClassHandle identifies an object class within a joined federation.
type ObjectClassHandle uint32

// AttributeHandle identifies an attribute of an object class.
type AttributeHandle uint32

// InteractionClassHandle identifies an interaction class.
type InteractionClassHandle uint32

// ParameterHandle identifies a parameter of an interaction class.
type ParameterHandle uint32

// ObjectInstanceHandle is the canonical identity token of a registered object
// instance. Two handles denote the same instance iff they are equal.
type ObjectInstanceHandle string

// FederateHandle is the encoded HLAhandle of a joined federate, as carried by
// the HLAfederateHandle attribute and the HLAfederate parameter.
type FederateHandle []byte

// IsZero reports whether the handle carries no bytes.
func (h FederateHandle) IsZero() bool {
	return len(h) == 0
}

// Equal compares two encoded handles byte for byte.
func (h FederateHandle) Equal(other FederateHandle) bool {
	return bytes.Equal(h, other)
}

// String renders the handle as lowercase hex for logs and reports.
func (h FederateHandle) String() string {
	return hex.EncodeToString(h)
}

// Clone returns a copy that does not alias the RTI's buffer.
func (h FederateHandle) Clone() FederateHandle {
	if h == nil {
		return nil
	}
	out := make(FederateHandle, len(h))
	copy(out, h)
	return out
}

// AttributeHandleValueMap holds encoded attribute values keyed by handle.
type AttributeHandleValueMap map[AttributeHandle][]byte

// ParameterHandleValueMap holds encoded parameter values keyed by handle.
type ParameterHandleValueMap map[ParameterHandle][]byte
