package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/hlaservices/internal/report"
)

// Snapshot renders the certified and non-certified reports of a result,
// dated ScenarioDate, as one document.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	cat, err := scenario.LoadCatalogue()
	if err != nil {
		return nil, err
	}
	in := report.Input{
		RunID:      result.RunID,
		Federation: scenario.FederationName(),
		SUTName:    scenario.SUT,
		Date:       ScenarioDate,
		Verdict:    result.Monitor.Verdict,
		Width:      cat.LongestName(),
		Events:     result.Monitor.Events,
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, report.Certified, in); err != nil {
		return nil, err
	}
	buf.WriteString("\n")
	if err := report.Render(&buf, report.NonCertified, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its reports against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
// Test failure (via goldie) occurs if the reports don't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result's reports against the golden
// file for the scenario without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
