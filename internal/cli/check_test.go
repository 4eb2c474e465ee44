package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hlaservices/internal/store"
)

var checkDate = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func testCheckOptions() *CheckOptions {
	return &CheckOptions{
		RunIDs: store.NewFixedGenerator("run-1"),
		Now:    func() time.Time { return checkDate },
	}
}

func runCheckCommand(t *testing.T, format string, f checkFixture, extra ...string) (CheckOutput, CLIResponse, error) {
	t.Helper()
	isolateConfig(t)
	cmd := newCheckCommand(&RootOptions{Format: format}, testCheckOptions())
	args := append([]string{f.params, "--catalogue", f.catalogue, "--script", f.script}, extra...)
	stdout, _, err := execute(t, cmd, args...)

	var resp CLIResponse
	var out CheckOutput
	if format == "json" {
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
		if resp.Data != nil {
			data, merr := json.Marshal(resp.Data)
			require.NoError(t, merr)
			require.NoError(t, json.Unmarshal(data, &out))
		}
	}
	return out, resp, err
}

func TestCheck_Passed(t *testing.T) {
	f := newCheckFixture(t, []string{"connect", "joinFederationExecution", "A"}, `
  - join: SUT1
  - report: {federate: SUT1, service: A}
`)

	out, resp, err := runCheckCommand(t, "json", f)
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "passed", out.Outcome)
	assert.True(t, out.Identified)
	assert.Equal(t, []string{"connect", "joinFederationExecution", "A"}, out.Certified)
	assert.Empty(t, out.NonCertified)
	require.Len(t, out.Reports, 3)
	for _, p := range out.Reports {
		assert.FileExists(t, p)
	}
	assert.FileExists(t, filepath.Join(f.results, "HLA_Services_certified_services_2026_03_14_09h26m53s.txt"))
}

func TestCheck_Failed(t *testing.T) {
	f := newCheckFixture(t, []string{"A", "B"}, `
  - join: SUT1
  - report: {federate: SUT1, service: A}
  - report: {federate: SUT1, service: B, success: false}
`)

	out, resp, err := runCheckCommand(t, "json", f)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
	assert.Equal(t, "failed", out.Outcome)
	assert.Equal(t, []string{"A"}, out.Certified)
	assert.Equal(t, []string{"B"}, out.NonCertified)
}

func TestCheck_SUTNeverJoins(t *testing.T) {
	f := newCheckFixture(t, []string{"A"}, `
  - join: Other
  - report: {federate: Other, service: A}
`)

	out, _, err := runCheckCommand(t, "json", f)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.False(t, out.Identified)
	assert.Equal(t, []string{"A"}, out.NonCertified)
}

func TestCheck_InconclusiveWithoutResultDirectory(t *testing.T) {
	f := newCheckFixture(t, []string{"A"}, "  - join: SUT1\n")
	require.NoError(t, os.Remove(f.results))

	out, resp, err := runCheckCommand(t, "json", f)
	assert.Equal(t, ExitInconclusive, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInconclusive, resp.Error.Code)
	assert.Equal(t, "inconclusive", out.Outcome)
	assert.Contains(t, out.Reason, "result directory")
	assert.Empty(t, out.Reports)
}

func TestCheck_InconclusiveWhenScriptFails(t *testing.T) {
	f := newCheckFixture(t, []string{"A"}, "  - resign: nobody\n")

	out, _, err := runCheckCommand(t, "json", f)
	assert.Equal(t, ExitInconclusive, GetExitCode(err))
	assert.Equal(t, "inconclusive", out.Outcome)
}

func TestCheck_RequiresScript(t *testing.T) {
	isolateConfig(t)
	f := newCheckFixture(t, []string{"A"}, "  - join: SUT1\n")

	cmd := NewCheckCommand(&RootOptions{Format: "text"})
	stdout, _, err := execute(t, cmd, f.params, "--catalogue", f.catalogue)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "pass --script")
}

func TestCheck_RequiresCatalogueFlag(t *testing.T) {
	isolateConfig(t)
	f := newCheckFixture(t, []string{"A"}, "  - join: SUT1\n")

	cmd := NewCheckCommand(&RootOptions{Format: "text"})
	_, _, err := execute(t, cmd, f.params, "--script", f.script)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestCheck_InvalidParams(t *testing.T) {
	f := newCheckFixture(t, []string{"A"}, "  - join: SUT1\n")
	writeFile(t, f.params, `{"federationName": "TheFederation"}`)

	_, resp, err := runCheckCommand(t, "json", f)
	assert.Equal(t, ExitInconclusive, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInconclusive, resp.Error.Code)
	assert.Equal(t, "sutName", resp.Error.Details)
}

func TestCheck_MissingTestDurationIsInconclusive(t *testing.T) {
	f := newCheckFixture(t, []string{"A"}, "  - join: SUT1\n")
	data, err := os.ReadFile(f.params)
	require.NoError(t, err)
	writeFile(t, f.params, strings.Replace(string(data), `"testDuration"`, `"duration"`, 1))

	_, resp, err := runCheckCommand(t, "json", f)
	assert.Equal(t, ExitInconclusive, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInconclusive, resp.Error.Code)
	assert.Equal(t, "testDuration", resp.Error.Details)
	assert.Contains(t, resp.Error.Message, "testDuration")
}

func TestCheck_BadCatalogueIsInconclusive(t *testing.T) {
	f := newCheckFixture(t, []string{"A", "A"}, "  - join: SUT1\n")

	_, resp, err := runCheckCommand(t, "json", f)
	assert.Equal(t, ExitInconclusive, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInconclusive, resp.Error.Code)
	assert.Equal(t, "catalogue", resp.Error.Details)
}

func TestCheck_UnreadableInputsAreCommandErrors(t *testing.T) {
	t.Run("params", func(t *testing.T) {
		f := newCheckFixture(t, []string{"A"}, "  - join: SUT1\n")
		require.NoError(t, os.Remove(f.params))

		_, resp, err := runCheckCommand(t, "json", f)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeParams, resp.Error.Code)
	})

	t.Run("script", func(t *testing.T) {
		f := newCheckFixture(t, []string{"A"}, "  - bogus: SUT1\n")

		_, resp, err := runCheckCommand(t, "json", f)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeScript, resp.Error.Code)
	})

	t.Run("script with bad params", func(t *testing.T) {
		f := newCheckFixture(t, []string{"A"}, "  - bogus: SUT1\n")
		writeFile(t, f.params, `{"federationName": "TheFederation"}`)

		_, resp, err := runCheckCommand(t, "json", f)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeScript, resp.Error.Code)
	})
}

func TestCheck_TextOutput(t *testing.T) {
	isolateConfig(t)
	f := newCheckFixture(t, []string{"A", "B"}, `
  - join: SUT1
  - report: {federate: SUT1, service: A}
`)

	cmd := newCheckCommand(&RootOptions{Format: "text"}, testCheckOptions())
	stdout, _, err := execute(t, cmd, f.params, "--catalogue", f.catalogue, "--script", f.script)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, stdout, "Run run-1: FAILED")
	assert.Contains(t, stdout, "SUT: SUT1 (federation TheFederation)")
	assert.Contains(t, stdout, "Certified (1):\n    A\n")
	assert.Contains(t, stdout, "Non-certified (1):\n    B\n")
}

func TestCheck_RecordsRunInLedger(t *testing.T) {
	f := newCheckFixture(t, []string{"A", "B"}, `
  - join: SUT1
  - report: {federate: SUT1, service: A}
`)
	dbPath := filepath.Join(f.dir, "runs.db")

	_, _, err := runCheckCommand(t, "json", f, "--db", dbPath)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.GetRun(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeFailed, run.Outcome)
	assert.Equal(t, []string{"A", "B"}, run.Catalogue)
	assert.NotEmpty(t, run.IdentityHandle)
}
