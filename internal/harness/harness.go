package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/hlaservices/internal/catalogue"
	"github.com/roach88/hlaservices/internal/monitor"
	"github.com/roach88/hlaservices/internal/simrti"
	"github.com/roach88/hlaservices/internal/store"
	"github.com/roach88/hlaservices/internal/testcase"
	"github.com/roach88/hlaservices/internal/testutil"
)

// ScenarioDate is the frozen wall clock of every scenario run.
var ScenarioDate = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// scenarioTimeout bounds one scenario, including wait steps.
const scenarioTimeout = 30 * time.Second

// Harness is the test execution engine.
// It runs scenarios with a frozen clock and a fixed run ID.
type Harness struct {
	store  *store.Store
	clock  *testutil.SteppingClock
	runIDs *testutil.FixedRunIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory RTI and ledger for isolation.
//
// Execution flow:
// 1. Create the simulated RTI, the federation and the monitor
// 2. Apply setup steps, then join and initialize the monitor
// 3. Apply steps with the monitor running, settling after each
// 4. Drain the monitor, record the outcome and evaluate assertions
//
// The returned error is for scenarios that could not execute at all; a
// scenario whose assertions fail returns a Result with Pass false.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with monitor logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewSteppingClock(ScenarioDate, 0),
		runIDs: testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), scenarioTimeout)
	defer cancel()
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cat, err := scenario.LoadCatalogue()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}

	result := NewResult()
	result.RunID = h.runIDs.Generate()
	federation := scenario.FederationName()

	if err := h.store.CreateRun(ctx, store.Run{
		ID:         result.RunID,
		Federation: federation,
		SUT:        scenario.SUT,
		Catalogue:  cat.Names(),
		StartedAt:  h.clock.Now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	ledger := store.NewRecorder(h.store, result.RunID, h.logger)

	rti := simrti.New(rtiOptions(scenario.RTI)...)
	amb := rti.NewAmbassador()
	mon, err := monitor.New(amb, monitor.Config{
		SUTName:   scenario.SUT,
		Catalogue: cat,
		Logger:    h.logger,
		Recorder:  monitor.Recorders{&traceRecorder{result: result}, ledger},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor: %w", err)
	}

	if err := amb.Connect(mon.Ambassador(), "crcAddress=simrti"); err != nil {
		return nil, fmt.Errorf("failed to connect monitor: %w", err)
	}
	defer amb.Disconnect()
	if err := amb.CreateFederationExecution(federation, nil); err != nil {
		return nil, fmt.Errorf("failed to create federation: %w", err)
	}

	runner := simrti.NewRunner(rti, federation, h.logger)
	if err := h.apply(ctx, runner, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if _, err := amb.JoinFederationExecution(testcase.FederateName, testcase.FederateType, federation); err != nil {
		return nil, fmt.Errorf("failed to join monitor: %w", err)
	}
	defer amb.ResignFederationExecution()

	initErr := mon.Init()
	h.checkInit(scenario, initErr, result)

	if initErr == nil {
		if err := h.observe(ctx, mon, runner, scenario.Steps, result); err != nil {
			return nil, err
		}
	}

	result.Monitor = mon.Result()
	h.finish(ctx, cat, initErr, ledger, result)

	actx := &AssertionContext{Ctx: ctx, Store: h.store}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// checkInit compares the Init outcome with the scenario's expectation.
func (h *Harness) checkInit(scenario *Scenario, initErr error, result *Result) {
	if initErr != nil {
		result.InitError = initErr.Error()
	}
	switch scenario.ExpectedInit() {
	case InitOK:
		if initErr != nil {
			result.AddError(fmt.Sprintf("monitor setup failed: %v", initErr))
		}
	case InitSetupError:
		if initErr == nil {
			result.AddError("expected monitor setup to fail, but it succeeded")
		} else if !monitor.IsSetupError(initErr) {
			result.AddError(fmt.Sprintf("expected a setup error, got: %v", initErr))
		}
	}
}

// observe runs the monitor loop while the steps are applied.
func (h *Harness) observe(ctx context.Context, mon *monitor.Monitor, runner *simrti.Runner, steps []simrti.Step, result *Result) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- mon.Run(runCtx) }()

	// Callbacks queued by Init (existing members, the federation object)
	// are handled before the first step.
	stepErr := mon.Sync(runCtx)
	if stepErr == nil {
		runner.Settle = mon.Sync
		stepErr = h.apply(runCtx, runner, steps, result)
	}

	mon.Stop()
	runErr := <-done
	if stepErr != nil {
		return fmt.Errorf("failed to execute steps: %w", stepErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("monitor stopped: %w", runErr)
	}
	return nil
}

// apply runs steps one at a time so joined federates can be captured
// before a later resign forgets them.
func (h *Harness) apply(ctx context.Context, runner *simrti.Runner, steps []simrti.Step, result *Result) error {
	for i, step := range steps {
		if err := runner.Apply(ctx, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Kind(), err)
		}
		if step.Join != nil {
			alias := step.Join.Alias()
			if amb := runner.Federate(alias); amb != nil {
				result.Federates[alias] = FederateRef{Name: amb.Name(), Handle: amb.Handle(), Object: amb.Object()}
			}
		}
		h.logger.Debug("scenario step completed", "step", i, "kind", step.Kind())
	}
	return nil
}

// finish records the run outcome and checks that the ledger replays to the
// same verdict as the monitor.
func (h *Harness) finish(ctx context.Context, cat *catalogue.Catalogue, initErr error, ledger *store.Recorder, result *Result) {
	f := store.Finish{FinishedAt: h.clock.Now(), Outcome: result.Monitor.Verdict.Outcome()}
	if initErr != nil {
		f.Outcome = store.OutcomeInconclusive
		f.Detail = initErr.Error()
	}
	if id := result.Monitor.Identity; id != nil {
		f.IdentityHandle = id.Handle.String()
	}
	if err := h.store.FinishRun(ctx, result.RunID, f); err != nil {
		result.AddError(fmt.Sprintf("ledger: %v", err))
		return
	}
	if err := ledger.Err(); err != nil {
		result.AddError(fmt.Sprintf("ledger: %v", err))
		return
	}

	state, err := h.store.GetRunState(ctx, result.RunID)
	if err != nil {
		result.AddError(fmt.Sprintf("ledger: %v", err))
		return
	}
	if !state.Consistent {
		result.AddError(fmt.Sprintf("ledger replay disagrees with monitor: stored %s, replayed %s",
			state.Run.Outcome, state.Verdict.Outcome()))
	}
	if got, want := len(state.Observations), countObserved(result.Monitor); got != want {
		result.AddError(fmt.Sprintf("ledger holds %d observations, monitor observed %d of %d", got, want, cat.Len()))
	}
}

func countObserved(res monitor.Result) int {
	n := 0
	for _, e := range res.Observations {
		if e.Observed {
			n++
		}
	}
	return n
}

func rtiOptions(opts *RTIOptions) []simrti.Option {
	if opts == nil {
		return nil
	}
	var out []simrti.Option
	if opts.Version != "" {
		out = append(out, simrti.WithVersion(opts.Version))
	}
	if opts.UnqualifiedNames {
		out = append(out, simrti.WithUnqualifiedNames())
	}
	return out
}
