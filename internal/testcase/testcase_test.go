package testcase

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hlaservices/internal/catalogue"
	"github.com/roach88/hlaservices/internal/hla"
	"github.com/roach88/hlaservices/internal/logging"
	"github.com/roach88/hlaservices/internal/metrics"
	"github.com/roach88/hlaservices/internal/monitor"
	"github.com/roach88/hlaservices/internal/params"
	"github.com/roach88/hlaservices/internal/simrti"
	"github.com/roach88/hlaservices/internal/store"
)

var testDate = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// testParams writes FOM and SOM files to a temp dir and returns parameters
// pointing at them with a short observation window.
func testParams(t *testing.T) *params.Params {
	t.Helper()
	dir := t.TempDir()
	fom := filepath.Join(dir, "fom.xml")
	som := filepath.Join(dir, "som.xml")
	require.NoError(t, os.WriteFile(fom, []byte("<objectModel/>"), 0o644))
	require.NoError(t, os.WriteFile(som, []byte("<objectModel/>"), 0o644))
	results := filepath.Join(dir, "results")
	require.NoError(t, os.Mkdir(results, 0o755))

	return &params.Params{
		FederationName:  "TheFederation",
		SUTName:         "SUT1",
		RTIAddress:      "localhost",
		RTIPort:         "8989",
		ResultDirectory: results,
		FOMFiles:        []string{fom},
		SOMFiles:        []string{som},
		TestDuration:    20 * time.Millisecond,
	}
}

// scripted returns an Exercise that replays steps through simulated federates.
func scripted(t *testing.T, rti *simrti.RTI, federation, script string) func(context.Context, *monitor.Monitor) error {
	t.Helper()
	steps, err := simrti.ParseScript([]byte("steps:\n" + script))
	require.NoError(t, err)
	return func(ctx context.Context, mon *monitor.Monitor) error {
		runner := simrti.NewRunner(rti, federation, logging.Discard())
		runner.Settle = mon.Sync
		return runner.Run(ctx, steps.Steps)
	}
}

func baseConfig(t *testing.T, rti *simrti.RTI, services ...string) Config {
	t.Helper()
	return Config{
		Params:    testParams(t),
		Catalogue: catalogue.MustNew(services...),
		RTI:       rti.NewAmbassador(),
		Logger:    logging.Discard(),
		RunIDs:    store.NewFixedGenerator("run-1"),
		Now:       func() time.Time { return testDate },
	}
}

func TestRun_Passed(t *testing.T) {
	rti := simrti.New()
	cfg := baseConfig(t, rti, "connect", "joinFederationExecution", "A")
	cfg.Exercise = scripted(t, rti, "TheFederation", `
  - join: SUT1
  - report: {federate: SUT1, service: A}
`)

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, Passed, res.Outcome)
	assert.Equal(t, "run-1", res.RunID)
	assert.True(t, res.Monitor.Verdict.Pass)
	require.NotNil(t, res.Monitor.Identity)
	assert.Equal(t, "SUT1", res.Monitor.Identity.Name)

	certified, err := os.ReadFile(res.Reports.Certified)
	require.NoError(t, err)
	assert.Contains(t, string(certified), `Results for SUT "SUT1"`)
	assert.Contains(t, string(certified), "joinFederationExecution")
	assert.Equal(t, "HLA_Services_certified_services_2026_03_14_09h26m53s.txt", filepath.Base(res.Reports.Certified))
	assert.Empty(t, res.Reports.Summary)
}

func TestRun_Failed(t *testing.T) {
	rti := simrti.New()
	cfg := baseConfig(t, rti, "connect", "A", "B")
	cfg.Summary = true
	cfg.Exercise = scripted(t, rti, "TheFederation", `
  - join: SUT1
  - report: {federate: SUT1, service: A}
`)

	res, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, IsFailed(err))
	assert.Equal(t, Failed, res.Outcome)

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, []string{"B"}, failed.NonCertified)

	nonCertified, err := os.ReadFile(res.Reports.NonCertified)
	require.NoError(t, err)
	assert.Contains(t, string(nonCertified), "B")
	assert.FileExists(t, res.Reports.Summary)
}

func TestRun_SUTNeverJoins(t *testing.T) {
	rti := simrti.New()
	cfg := baseConfig(t, rti, "connect", "A")

	res, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.Nil(t, res.Monitor.Identity)
	assert.Equal(t, []string{"connect", "A"}, res.Monitor.Verdict.NonCertifiedNames())
}

func TestRun_LeavesFederation(t *testing.T) {
	rti := simrti.New()
	cfg := baseConfig(t, rti, "connect")
	cfg.Exercise = scripted(t, rti, "TheFederation", "  - join: SUT1\n")

	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	// The SUT is still joined; only the test federate resigned.
	exists, joined := rti.Federation("TheFederation")
	assert.True(t, exists)
	assert.Equal(t, 1, joined)
}

func TestRun_ExistingFederation(t *testing.T) {
	rti := simrti.New()
	other := rti.NewAmbassador()
	require.NoError(t, other.Connect(nil, "crcAddress=other"))
	require.NoError(t, other.CreateFederationExecution("TheFederation", nil))

	cfg := baseConfig(t, rti, "connect")
	cfg.Exercise = scripted(t, rti, "TheFederation", "  - join: SUT1\n")

	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)
}

func TestRun_Inconclusive(t *testing.T) {
	tests := []struct {
		name   string
		modify func(t *testing.T, rti *simrti.RTI, cfg *Config)
		phase  string
	}{
		{
			name: "missing result directory",
			modify: func(t *testing.T, _ *simrti.RTI, cfg *Config) {
				cfg.Params.ResultDirectory = filepath.Join(t.TempDir(), "absent")
			},
			phase: "perform",
		},
		{
			name: "missing FOM file",
			modify: func(t *testing.T, _ *simrti.RTI, cfg *Config) {
				cfg.Params.FOMFiles = []string{filepath.Join(t.TempDir(), "absent.xml")}
			},
			phase: "preamble",
		},
		{
			name: "join fails",
			modify: func(t *testing.T, rti *simrti.RTI, _ *Config) {
				require.NoError(t, rti.InjectFailure(simrti.OpJoinFederationExecution, nil))
			},
			phase: "preamble",
		},
		{
			name: "connect fails",
			modify: func(t *testing.T, rti *simrti.RTI, _ *Config) {
				require.NoError(t, rti.InjectFailure(simrti.OpConnect, nil))
			},
			phase: "preamble",
		},
		{
			name: "handle resolution fails",
			modify: func(t *testing.T, rti *simrti.RTI, _ *Config) {
				require.NoError(t, rti.InjectFailure(simrti.OpGetObjectClassHandle, nil))
			},
			phase: "preamble",
		},
		{
			name: "no catalogue",
			modify: func(_ *testing.T, _ *simrti.RTI, cfg *Config) {
				cfg.Catalogue = nil
			},
			phase: "preamble",
		},
		{
			name: "exercise fails",
			modify: func(_ *testing.T, rti *simrti.RTI, cfg *Config) {
				cfg.Exercise = func(context.Context, *monitor.Monitor) error {
					return hla.ErrRTIInternal
				}
			},
			phase: "perform",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rti := simrti.New()
			cfg := baseConfig(t, rti, "connect", "A")
			tt.modify(t, rti, &cfg)

			res, err := Run(context.Background(), cfg)
			require.Error(t, err)
			assert.Equal(t, Inconclusive, res.Outcome)

			var ie *InconclusiveError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.phase, ie.Phase)
		})
	}
}

func TestRun_CancelledIsInconclusive(t *testing.T) {
	rti := simrti.New()
	cfg := baseConfig(t, rti, "connect")
	cfg.Params.TestDuration = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg.Exercise = func(context.Context, *monitor.Monitor) error {
		cancel()
		return nil
	}

	res, err := Run(ctx, cfg)
	require.Error(t, err)
	assert.True(t, IsInconclusive(err))
	assert.Equal(t, Inconclusive, res.Outcome)
}

func TestRun_RequiresParamsAndRTI(t *testing.T) {
	res, err := Run(context.Background(), Config{RTI: simrti.New().NewAmbassador()})
	assert.True(t, IsInconclusive(err))
	assert.Equal(t, Inconclusive, res.Outcome)

	_, err = Run(context.Background(), Config{Params: &params.Params{}})
	assert.True(t, IsInconclusive(err))
}

func TestRun_RecordsLedgerAndMetrics(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rti := simrti.New()
	cfg := baseConfig(t, rti, "connect", "A", "B")
	cfg.Store = s
	cfg.Metrics = metrics.NewCollector()
	cfg.Exercise = scripted(t, rti, "TheFederation", `
  - join: SUT1
  - report: {federate: SUT1, service: A}
`)

	res, err := Run(context.Background(), cfg)
	require.True(t, IsFailed(err))

	ctx := context.Background()
	run, err := s.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeFailed, run.Outcome)
	assert.Equal(t, "SUT1", run.SUT)
	assert.Equal(t, []string{"connect", "A", "B"}, run.Catalogue)
	assert.True(t, run.Finished())

	obs, err := s.ReadObservations(ctx, res.RunID)
	require.NoError(t, err)
	services := make([]string, len(obs))
	for i, o := range obs {
		services[i] = o.Service
	}
	assert.Equal(t, []string{"connect", "A"}, services)

	state, err := s.GetRunState(ctx, res.RunID)
	require.NoError(t, err)
	assert.True(t, state.Consistent)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "passed", Passed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "inconclusive", Inconclusive.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, Passed, OutcomeOf(nil))
	assert.Equal(t, Failed, OutcomeOf(&FailedError{NonCertified: []string{"A"}}))
	assert.Equal(t, Inconclusive, OutcomeOf(inconclusive("preamble", "x", nil)))
	assert.Equal(t, Inconclusive, OutcomeOf(context.Canceled))
}
