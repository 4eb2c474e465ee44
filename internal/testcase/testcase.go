// Package testcase runs the HLA services check: it joins the federation
// under test, watches the SUT for a fixed window and reports which of the
// expected services were invoked.
package testcase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/hlaservices/internal/catalogue"
	"github.com/roach88/hlaservices/internal/hla"
	"github.com/roach88/hlaservices/internal/metrics"
	"github.com/roach88/hlaservices/internal/monitor"
	"github.com/roach88/hlaservices/internal/params"
	"github.com/roach88/hlaservices/internal/report"
	"github.com/roach88/hlaservices/internal/store"
)

// Federate identity of the test case itself.
const (
	FederateName = "IVCT_HLA_Services"
	FederateType = "IVCT"
)

// Purpose is logged at the start of every run.
const Purpose = `Purpose:
Check that the SUT invokes the HLA services it declares.
The expected services come from the FOM/SOM analysis of the SUT.
Each one must be reported by the RTI as successfully invoked by the SUT during the test.`

// Config configures one run.
type Config struct {
	// Params are the test parameters. Required.
	Params *params.Params

	// Catalogue is the expected-service catalogue. When nil it is loaded
	// from CataloguePath during the preamble.
	Catalogue     *catalogue.Catalogue
	CataloguePath string

	// RTI is an unconnected ambassador. Required.
	RTI hla.RTIAmbassador

	Logger *slog.Logger

	// Store records the run when set.
	Store  *store.Store
	RunIDs store.RunIDGenerator

	// Metrics receives counters when set.
	Metrics *metrics.Collector

	// Now defaults to time.Now. Used for report stamps and ledger times.
	Now func() time.Time

	// Summary also writes the JSON summary report.
	Summary bool

	QueueCapacity int

	// Exercise runs at the start of the observation window, while the
	// monitor is live. Scripted runs use it to drive simulated federates.
	// An error ends the run as inconclusive.
	Exercise func(ctx context.Context, mon *monitor.Monitor) error
}

// Result describes a finished run.
type Result struct {
	RunID   string
	Outcome Outcome

	// Monitor is the monitor's final state. Zero if the preamble failed
	// before the monitor existed.
	Monitor monitor.Result

	Reports report.Paths
}

// Run executes the test case: purpose, preamble, perform, postamble.
// The returned error is nil on pass, a *FailedError on a failed verdict and
// an *InconclusiveError otherwise. Result is never nil.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	tc, err := newRun(cfg)
	if err != nil {
		return &Result{Outcome: Inconclusive}, err
	}
	return tc.run(ctx)
}

type run struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	runID  string

	cat       *catalogue.Catalogue
	mon       *monitor.Monitor
	recorder  *store.Recorder
	connected bool
	joined    bool
}

func newRun(cfg Config) (*run, error) {
	if cfg.Params == nil {
		return nil, inconclusive("preamble", "test parameters are required", nil)
	}
	if cfg.RTI == nil {
		return nil, inconclusive("preamble", "RTI ambassador is required", nil)
	}
	r := &run{cfg: cfg, logger: cfg.Logger, now: cfg.Now}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if cfg.RunIDs == nil {
		r.cfg.RunIDs = store.UUIDv7Generator{}
	}
	r.runID = r.cfg.RunIDs.Generate()
	r.logger = r.logger.With("run", r.runID)
	return r, nil
}

func (r *run) run(ctx context.Context) (*Result, error) {
	r.logger.Info(Purpose)
	res := &Result{RunID: r.runID}

	err := r.preamble(ctx)
	if err == nil {
		err = r.perform(ctx, res)
	}
	r.postamble()

	res.Outcome = OutcomeOf(err)
	if r.mon != nil {
		res.Monitor = r.mon.Result()
	}
	r.finish(res, err)

	switch res.Outcome {
	case Passed:
		r.logger.Info("test case passed", "sut", r.cfg.Params.SUTName)
	case Failed:
		r.logger.Warn("test case failed", "error", err)
	default:
		r.logger.Error("test case inconclusive", "error", err)
	}
	return res, err
}

// preamble loads the catalogue, checks the model files, joins the
// federation and initializes the monitor. Every failure is inconclusive.
func (r *run) preamble(ctx context.Context) error {
	p := r.cfg.Params

	r.cat = r.cfg.Catalogue
	if r.cat == nil {
		if r.cfg.CataloguePath == "" {
			return inconclusive("preamble", "no expected-service catalogue", catalogue.ErrEmpty)
		}
		cat, err := catalogue.Load(r.cfg.CataloguePath)
		if err != nil {
			return inconclusive("preamble", "cannot load expected-service catalogue", err)
		}
		r.cat = cat
	}
	if err := p.CheckFiles(); err != nil {
		return inconclusive("preamble", "FOM/SOM files", err)
	}

	if r.cfg.Store != nil {
		err := r.cfg.Store.CreateRun(ctx, store.Run{
			ID:         r.runID,
			Federation: p.FederationName,
			SUT:        p.SUTName,
			Catalogue:  r.cat.Names(),
			StartedAt:  r.now(),
		})
		if err != nil {
			return inconclusive("preamble", "cannot record run", err)
		}
		r.recorder = store.NewRecorder(r.cfg.Store, r.runID, r.logger)
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.ResetRun()
	}

	mon, err := monitor.New(r.cfg.RTI, monitor.Config{
		SUTName:       p.SUTName,
		Catalogue:     r.cat,
		Logger:        r.logger,
		Recorder:      r.recorders(),
		QueueCapacity: r.cfg.QueueCapacity,
	})
	if err != nil {
		return inconclusive("preamble", "cannot create monitor", err)
	}
	r.mon = mon

	rti := r.cfg.RTI
	if err := rti.Connect(mon.Ambassador(), p.SettingsDesignator()); err != nil {
		return inconclusive("preamble", "connect", err)
	}
	r.connected = true

	err = rti.CreateFederationExecution(p.FederationName, p.FOMFiles)
	switch {
	case errors.Is(err, hla.ErrFederationExists):
		r.logger.Debug("federation already exists", "federation", p.FederationName)
	case err != nil:
		return inconclusive("preamble", "create federation execution", err)
	}

	if _, err := rti.JoinFederationExecution(FederateName, FederateType, p.FederationName); err != nil {
		return inconclusive("preamble", "join federation execution", err)
	}
	r.joined = true

	if err := mon.Init(); err != nil {
		return inconclusive("preamble", "monitor initialization", err)
	}
	r.logger.Info("connected to RTI", "federation", p.FederationName, "settings", p.SettingsDesignator())
	return nil
}

func (r *run) recorders() monitor.Recorder {
	var rs monitor.Recorders
	if r.recorder != nil {
		rs = append(rs, r.recorder)
	}
	if r.cfg.Metrics != nil {
		rs = append(rs, r.cfg.Metrics)
	}
	if len(rs) == 0 {
		return nil
	}
	return rs
}

// perform runs the observation window, then writes the reports.
func (r *run) perform(ctx context.Context, res *Result) error {
	p := r.cfg.Params
	if err := p.CheckResultDirectory(); err != nil {
		return inconclusive("perform", "result directory", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.mon.Run(runCtx) }()

	window := time.NewTimer(p.TestDuration)
	defer window.Stop()
	r.logger.Info("observing SUT", "sut", p.SUTName, "duration", p.TestDuration)

	if r.cfg.Exercise != nil {
		if err := r.cfg.Exercise(runCtx, r.mon); err != nil {
			r.stopMonitor(done)
			if ctx.Err() != nil {
				return inconclusive("perform", "observation interrupted", ctx.Err())
			}
			return inconclusive("perform", "exercise", err)
		}
	}

	select {
	case <-ctx.Done():
		r.stopMonitor(done)
		return inconclusive("perform", "observation interrupted", ctx.Err())
	case err := <-done:
		return inconclusive("perform", "monitor stopped early", err)
	case <-window.C:
	}
	r.logger.Info("observation window elapsed")

	if err := r.stopMonitor(done); err != nil {
		return inconclusive("perform", "monitor", err)
	}

	result := r.mon.Result()
	in := report.Input{
		RunID:      r.runID,
		Federation: p.FederationName,
		SUTName:    p.SUTName,
		Date:       r.now(),
		Verdict:    result.Verdict,
		Width:      r.cat.LongestName(),
		Events:     result.Events,
	}
	if id := result.Identity; id != nil {
		in.Identity = &report.Identity{Name: id.Name, Handle: id.Handle.String(), Object: string(id.Object)}
	}
	paths, err := report.Write(p.ResultDirectory, in, r.cfg.Summary, r.logger)
	if err != nil {
		return inconclusive("perform", "cannot write reports", err)
	}
	res.Reports = paths

	if !result.Verdict.Pass {
		return &FailedError{NonCertified: result.Verdict.NonCertifiedNames()}
	}
	return nil
}

// stopMonitor closes the queue and waits for Run to drain it.
func (r *run) stopMonitor(done <-chan error) error {
	r.mon.Stop()
	err := <-done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// postamble leaves the federation. Errors are logged and never change the
// outcome.
func (r *run) postamble() {
	rti := r.cfg.RTI
	if r.joined {
		if err := rti.ResignFederationExecution(); err != nil {
			r.logger.Warn("resign failed", "error", err)
		}
		r.joined = false
	}
	if r.connected {
		if err := rti.Disconnect(); err != nil {
			r.logger.Warn("disconnect failed", "error", err)
		}
		r.connected = false
	}
}

// finish records the outcome in the ledger and metrics.
func (r *run) finish(res *Result, err error) {
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.ObserveVerdict(res.Outcome.String())
	}
	if r.cfg.Store == nil || r.recorder == nil {
		return
	}

	f := store.Finish{FinishedAt: r.now(), Outcome: res.Outcome.String()}
	if err != nil {
		f.Detail = err.Error()
	}
	if id := res.Monitor.Identity; id != nil {
		f.IdentityHandle = id.Handle.String()
	}
	if ferr := r.cfg.Store.FinishRun(context.Background(), r.runID, f); ferr != nil {
		r.logger.Error("cannot record run outcome", "error", ferr)
	}
	if rerr := r.recorder.Err(); rerr != nil {
		r.logger.Warn("run ledger is incomplete", "error", rerr)
	}
}

// String describes a result for CLI output.
func (res *Result) String() string {
	return fmt.Sprintf("run %s: %s", res.RunID, res.Outcome)
}
