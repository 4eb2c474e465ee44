// Package hla defines the boundary between the conformance monitor and an
// HLA 1516-2010 Run-Time Infrastructure.
//
// The package contains no RTI. It declares:
//   - Opaque handle types and handle/value maps
//   - The RTIAmbassador contract (federation management, name resolution,
//     declaration management, interaction exchange)
//   - The FederateAmbassador callback contract
//   - Management Object Model (MOM) class, attribute, and parameter names
//   - Encoders and decoders for the basic data representations the MOM
//     uses (HLAboolean, HLAunicodeString, HLAhandle)
//
// Every RTI binding (and the in-memory simrti package) implements these
// interfaces; the rest of the module depends only on this package.
package hla
