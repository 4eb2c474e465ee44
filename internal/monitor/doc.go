// Package monitor observes a federation through the HLA management object
// model and records which expected services the system under test (SUT)
// exercises.
//
// ARCHITECTURE:
//
// Callback normalization:
// The RTI drives a FederateAmbassador whose reflect, receive and remove
// overloads all collapse into one Event type with three payload variants
// (AttributesUpdated, InteractionReceived, ObjectRemoved). The dispatcher
// only stamps and enqueues; it never blocks the RTI's delivery goroutine.
//
// Single-writer event loop:
// Monitor.Run dequeues events in FIFO order and is the only writer of the
// SUT identity, the lifecycle state and (through them) the observation
// table. RTI calls made in reaction to events, such as arming service
// reporting, are issued from this goroutine too.
//
// Event handling:
//  1. AttributesUpdated: resolve the SUT identity (first match wins), arm
//     reporting, seed connect/create/join; log the RTI version.
//  2. InteractionReceived: keep HLAreportServiceInvocation only, decode it
//     and mark the service when the invocation succeeded.
//  3. ObjectRemoved: when the SUT's HLAfederate object goes, seed
//     resign/destroy/disconnect.
//
// Errors:
// Init failures are setup errors and end the run as inconclusive. Errors
// while handling an event are logged, the event is dropped, and the loop
// continues with whatever observation state it already has.
package monitor
