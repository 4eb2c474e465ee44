package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hlaservices/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Outcome  string // optional - filter events by outcome
	Limit    int
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID         string `json:"id"`
	Federation string `json:"federation"`
	SUT        string `json:"sut"`
	StartedAt  string `json:"started_at"`
	Outcome    string `json:"outcome"`
}

// TraceEvent represents a single event in the run timeline.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Type    string `json:"type"` // "event" or "observation"
	Kind    string `json:"kind,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Service string `json:"service,omitempty"`
	Source  string `json:"source,omitempty"`
}

// TraceResult holds the complete trace output for one run.
type TraceResult struct {
	Run          RunSummary   `json:"run"`
	Identity     string       `json:"identity_handle,omitempty"`
	Armed        bool         `json:"armed"`
	Timeline     []TraceEvent `json:"timeline"`
	Certified    []string     `json:"certified"`
	NonCertified []string     `json:"non_certified"`
	Stats        TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	Events       int   `json:"events"`
	Observations int   `json:"observations"`
	LastSeq      int64 `json:"last_seq"`
	Consistent   bool  `json:"consistent"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect recorded runs",
		Long: `Inspect the run ledger written by check.

Without a run ID, lists recorded runs, most recent first. With a run ID,
shows the run's timeline of handled callbacks and applied observations,
the verdict replayed from the ledger and whether it agrees with the
recorded outcome.

Examples:
  hlaservices trace --db ./runs.db
  hlaservices trace --db ./runs.db 0192f0c4-...
  hlaservices trace --db ./runs.db 0192f0c4-... --outcome decode_error
  hlaservices trace --db ./runs.db 0192f0c4-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListRuns(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run ledger database")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only show events with this outcome")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func (o *TraceOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openLedger opens an existing database. Open would create a missing file.
func (o *TraceOptions) openLedger() (*store.Store, error) {
	if _, err := os.Stat(o.Database); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", o.Database))
	}
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runListRuns(opts *TraceOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.openLedger()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(contextOf(cmd), opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}
	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, summarize(r))
	}

	if f.Format == "json" {
		return f.JSON(CLIResponse{Status: "ok", Data: summaries})
	}
	if len(summaries) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(f.Writer, "%s  %-12s  %s  %s/%s\n", s.StartedAt, s.Outcome, s.ID, s.Federation, s.SUT)
	}
	return nil
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.openLedger()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := contextOf(cmd)
	state, err := st.GetRunState(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			_ = f.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
			return NewExitError(ExitFailure, "run not found")
		}
		return WrapExitError(ExitFailure, "failed to read run", err)
	}

	events := state.Events
	if opts.Outcome != "" {
		if events, err = st.ReadEvents(ctx, runID, opts.Outcome); err != nil {
			return WrapExitError(ExitFailure, "failed to read events", err)
		}
	}

	result := TraceResult{
		Run:          summarize(state.Run),
		Identity:     state.Run.IdentityHandle,
		Armed:        state.Run.Armed,
		Timeline:     timeline(events, state.Observations),
		Certified:    state.Verdict.CertifiedNames(),
		NonCertified: state.Verdict.NonCertifiedNames(),
		Stats: TraceStats{
			Events:       len(events),
			Observations: len(state.Observations),
			LastSeq:      state.LastSeq,
			Consistent:   state.Consistent,
		},
	}

	if f.Format == "json" {
		return f.JSON(CLIResponse{Status: "ok", Data: result, RunID: runID})
	}
	outputTraceText(f.Writer, result)
	return nil
}

// timeline merges events and observations by seq. An observation sorts
// after the event that applied it.
func timeline(events []store.Event, observations []store.Observation) []TraceEvent {
	out := make([]TraceEvent, 0, len(events)+len(observations))
	i, j := 0, 0
	for i < len(events) || j < len(observations) {
		if j == len(observations) || (i < len(events) && events[i].Seq <= observations[j].Seq) {
			e := events[i]
			out = append(out, TraceEvent{Seq: e.Seq, Type: "event", Kind: e.Kind, Outcome: e.Outcome, Detail: e.Detail})
			i++
			continue
		}
		o := observations[j]
		out = append(out, TraceEvent{Seq: o.Seq, Type: "observation", Service: o.Service, Source: o.Source})
		j++
	}
	return out
}

func summarize(r store.Run) RunSummary {
	outcome := r.Outcome
	if outcome == "" {
		outcome = "in-progress"
	}
	return RunSummary{
		ID:         r.ID,
		Federation: r.Federation,
		SUT:        r.SUT,
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		Outcome:    outcome,
	}
}

func outputTraceText(w io.Writer, r TraceResult) {
	fmt.Fprintf(w, "Run: %s\n", r.Run.ID)
	fmt.Fprintf(w, "SUT: %s (federation %s)\n", r.Run.SUT, r.Run.Federation)
	fmt.Fprintf(w, "Outcome: %s\n", r.Run.Outcome)
	if r.Identity != "" {
		fmt.Fprintf(w, "Identity: %s (armed: %v)\n", r.Identity, r.Armed)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Timeline:")
	if len(r.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range r.Timeline {
		switch ev.Type {
		case "observation":
			fmt.Fprintf(w, "  [%d]   observed %s (%s)\n", ev.Seq, ev.Service, ev.Source)
		default:
			line := fmt.Sprintf("  [%d] %s -> %s", ev.Seq, ev.Kind, ev.Outcome)
			if ev.Detail != "" {
				line += ": " + ev.Detail
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w)

	writeNames(w, "Certified", r.Certified)
	writeNames(w, "Non-certified", r.NonCertified)
	fmt.Fprintf(w, "Events: %d, observations: %d, consistent: %v\n",
		r.Stats.Events, r.Stats.Observations, r.Stats.Consistent)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
