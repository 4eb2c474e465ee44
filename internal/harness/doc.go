// Package harness runs YAML conformance scenarios for the services monitor.
//
// A scenario names a SUT, an expected-service catalogue and a script of
// federate actions. The harness builds an in-memory RTI (simrti), joins the
// real monitor to it, replays the script through scripted federates and then
// evaluates assertions against the monitor's final state.
//
// # Execution
//
//  1. Create the federation and apply setup steps (before the monitor joins)
//  2. Join the monitor and run Init; compare the outcome with expect.init
//  3. Start the event loop and apply steps, settling after each one
//  4. Stop the monitor, drain the queue and evaluate assertions
//
// Settling waits until the monitor has handled every callback a step
// produced, so traces and verdicts are deterministic.
//
// # Assertions
//
//   - verdict: overall outcome, "passed" or "failed"
//   - certified, non_certified: exact service lists in catalogue order
//   - observed: one service, optionally with its source ("none" = unobserved)
//   - identity: the tracked SUT, by name and scripted federate alias
//   - armed: whether service reporting was enabled for the SUT
//   - lifecycle: the lifecycle driver's final state
//   - event_count: how many events were handled with an outcome
//
// # Golden files
//
// RunWithGolden renders the certified and non-certified reports with a
// frozen date and compares them against testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
