package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/hlaservices/internal/metrics"
	"github.com/roach88/hlaservices/internal/monitor"
	"github.com/roach88/hlaservices/internal/simrti"
	"github.com/roach88/hlaservices/internal/store"
	"github.com/roach88/hlaservices/internal/testcase"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	Catalogue   string
	Script      string
	Database    string
	MetricsAddr string
	Summary     bool
	RTIVersion  string

	// RunIDs and Now are injected by tests.
	RunIDs store.RunIDGenerator
	Now    func() time.Time
}

// CheckOutput is the JSON payload of a finished check.
type CheckOutput struct {
	RunID        string   `json:"run_id"`
	Outcome      string   `json:"outcome"`
	SUT          string   `json:"sut"`
	Federation   string   `json:"federation"`
	Identified   bool     `json:"identified"`
	Certified    []string `json:"certified"`
	NonCertified []string `json:"non_certified"`
	Reports      []string `json:"reports,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return newCheckCommand(rootOpts, &CheckOptions{})
}

func newCheckCommand(rootOpts *RootOptions, opts *CheckOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <params.json>",
		Short: "Run the HLA services check against a federate under test",
		Long: `Run the HLA services check.

Joins the federation named in the test parameters, follows the SUT through
the RTI's management object model for the test duration and writes the
certified and non-certified service reports to the result directory.

The RTI is simulated: --script names a YAML file of federate actions played
while the monitor observes. Exit codes: 0 passed, 1 failed, 3 inconclusive,
2 command error.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalogue, "catalogue", "", "expected-service catalogue (.cue or .yaml)")
	cmd.Flags().StringVar(&opts.Script, "script", "", "simulated RTI script (.yaml)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "run ledger database (overrides config store.path)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "also write the JSON summary report")
	cmd.Flags().StringVar(&opts.RTIVersion, "rti-version", "", "HLARTIversion reported by the simulated RTI")
	_ = cmd.MarkFlagRequired("catalogue")

	return cmd
}

func runCheck(rootOpts *RootOptions, opts *CheckOptions, paramsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	if opts.Script == "" {
		_ = formatter.Error(ErrCodeScript, "no RTI binding is available; pass --script to run against the simulated RTI", nil)
		return NewExitError(ExitCommandError, "no RTI binding")
	}

	inputs, loadErrs := LoadInputs(InputPaths{Params: paramsPath, Catalogue: opts.Catalogue, Script: opts.Script})
	if len(loadErrs) > 0 {
		// Command errors win over setup failures.
		first := loadErrs[0]
		for _, err := range loadErrs {
			var le *LoadError
			if !errors.As(err, &le) || !le.SetupFailure() {
				first = err
				break
			}
		}
		var le *LoadError
		switch {
		case errors.As(first, &le) && le.SetupFailure():
			logger.Warn("test case setup failed", "field", le.Field, "error", le)
			_ = formatter.Error(ErrCodeInconclusive, le.Error(), le.Field)
			return WrapExitError(ExitInconclusive, "verdict inconclusive", le)
		case le != nil:
			_ = formatter.Error(le.Code, le.Error(), le.Field)
		default:
			_ = formatter.Error(ErrCodeGeneric, first.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "invalid input", first)
	}

	dbPath := cfg.Store.Path
	if opts.Database != "" {
		dbPath = opts.Database
	}
	var st *store.Store
	if dbPath != "" {
		st, err = store.Open(dbPath)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("failed to open database: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	collector := metrics.NewCollector()
	metricsAddr := cfg.Metrics.Address
	if opts.MetricsAddr != "" {
		metricsAddr = opts.MetricsAddr
	}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := collector.Register(reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		srv := metrics.Start(metricsAddr, reg, logger)
		defer shutdownMetrics(srv, logger)
	}

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	p := inputs.Params
	var rtiOpts []simrti.Option
	if opts.RTIVersion != "" {
		rtiOpts = append(rtiOpts, simrti.WithVersion(opts.RTIVersion))
	}
	rti := simrti.New(rtiOpts...)
	script := inputs.Script

	res, runErr := testcase.Run(ctx, testcase.Config{
		Params:        p,
		Catalogue:     inputs.Catalogue,
		RTI:           rti.NewAmbassador(),
		Logger:        logger,
		Store:         st,
		RunIDs:        opts.RunIDs,
		Metrics:       collector,
		Now:           opts.Now,
		Summary:       opts.Summary || cfg.Report.Summary,
		QueueCapacity: cfg.Monitor.QueueCapacityHint,
		Exercise: func(ctx context.Context, mon *monitor.Monitor) error {
			runner := simrti.NewRunner(rti, p.FederationName, logger)
			runner.Settle = mon.Sync
			return runner.Run(ctx, script.Steps)
		},
	})

	out := checkOutput(res, p.SUTName, p.FederationName, runErr)
	formatter.VerboseLog("run %s finished after %d events", res.RunID, res.Monitor.Events)

	switch res.Outcome {
	case testcase.Passed:
		return outputCheck(formatter, out, nil)
	case testcase.Failed:
		if err := outputCheck(formatter, out, &CLIError{Code: ErrCodeFailed, Message: out.Reason, Details: out.NonCertified}); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "verdict failed", runErr)
	default:
		if err := outputCheck(formatter, out, &CLIError{Code: ErrCodeInconclusive, Message: out.Reason}); err != nil {
			return err
		}
		return WrapExitError(ExitInconclusive, "verdict inconclusive", runErr)
	}
}

func checkOutput(res *testcase.Result, sut, federation string, runErr error) CheckOutput {
	out := CheckOutput{
		RunID:        res.RunID,
		Outcome:      res.Outcome.String(),
		SUT:          sut,
		Federation:   federation,
		Identified:   res.Monitor.Identity != nil,
		Certified:    res.Monitor.Verdict.CertifiedNames(),
		NonCertified: res.Monitor.Verdict.NonCertifiedNames(),
	}
	for _, p := range []string{res.Reports.Certified, res.Reports.NonCertified, res.Reports.Summary} {
		if p != "" {
			out.Reports = append(out.Reports, p)
		}
	}
	if out.Certified == nil {
		out.Certified = []string{}
	}
	if out.NonCertified == nil {
		out.NonCertified = []string{}
	}
	if runErr != nil {
		out.Reason = runErr.Error()
	}
	return out
}

func outputCheck(f *OutputFormatter, out CheckOutput, cliErr *CLIError) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: out, RunID: out.RunID}
		if cliErr != nil {
			resp.Status = "error"
			resp.Error = cliErr
		}
		return f.JSON(resp)
	}

	w := f.Writer
	fmt.Fprintf(w, "Run %s: %s\n", out.RunID, strings.ToUpper(out.Outcome))
	fmt.Fprintf(w, "  SUT: %s (federation %s)\n", out.SUT, out.Federation)
	if !out.Identified && out.Outcome != testcase.Inconclusive.String() {
		fmt.Fprintln(w, "  SUT was never identified")
	}
	writeNames(w, "Certified", out.Certified)
	writeNames(w, "Non-certified", out.NonCertified)
	for _, p := range out.Reports {
		fmt.Fprintf(w, "  Report: %s\n", p)
	}
	if cliErr != nil && out.Outcome == testcase.Inconclusive.String() {
		fmt.Fprintf(w, "  Reason: %s\n", out.Reason)
	}
	return nil
}

func writeNames(w io.Writer, label string, names []string) {
	fmt.Fprintf(w, "  %s (%d):", label, len(names))
	if len(names) == 0 {
		fmt.Fprintln(w, " none")
		return
	}
	fmt.Fprintln(w)
	for _, n := range names {
		fmt.Fprintf(w, "    %s\n", n)
	}
}

func shutdownMetrics(srv *metrics.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", "error", err)
	}
}
