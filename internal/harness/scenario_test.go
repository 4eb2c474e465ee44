package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: basic
description: one report
sut: SUT1
catalogue: [connect, A]
steps:
  - join: SUT1
  - report: {federate: SUT1, service: A, success: false}
assertions:
  - type: verdict
    outcome: failed
`))
	require.NoError(t, err)

	assert.Equal(t, "basic", scenario.Name)
	assert.Equal(t, DefaultFederation, scenario.FederationName())
	assert.Equal(t, InitOK, scenario.ExpectedInit())
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "SUT1", scenario.Steps[0].Join.Name)
	require.NotNil(t, scenario.Steps[1].Report.Success)
	assert.False(t, *scenario.Steps[1].Report.Success)

	cat, err := scenario.LoadCatalogue()
	require.NoError(t, err)
	assert.Equal(t, []string{"connect", "A"}, cat.Names())
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\nassertion: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: x\nsut: S\ncatalogue: [A]\nassertions: [{type: verdict, outcome: passed}]\n",
			want: "name is required",
		},
		{
			name: "missing sut",
			yaml: "name: x\ndescription: x\ncatalogue: [A]\nassertions: [{type: verdict, outcome: passed}]\n",
			want: "sut is required",
		},
		{
			name: "missing catalogue",
			yaml: "name: x\ndescription: x\nsut: S\nassertions: [{type: verdict, outcome: passed}]\n",
			want: "catalogue list is required",
		},
		{
			name: "both catalogue forms",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\ncatalogue_file: a.cue\nassertions: [{type: verdict, outcome: passed}]\n",
			want: "mutually exclusive",
		},
		{
			name: "no assertions",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\n",
			want: "assertions list is required",
		},
		{
			name: "bad step",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\nsteps: [{fail: teleport}]\nassertions: [{type: verdict, outcome: passed}]\n",
			want: "unknown RTI operation",
		},
		{
			name: "bad expect",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\nexpect: {init: maybe}\nassertions: [{type: verdict, outcome: passed}]\n",
			want: "expect.init",
		},
		{
			name: "bad verdict outcome",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\nassertions: [{type: verdict, outcome: inconclusive}]\n",
			want: "outcome must be passed or failed",
		},
		{
			name: "unknown source",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\nassertions: [{type: observed, service: A, source: rumour}]\n",
			want: `unknown source "rumour"`,
		},
		{
			name: "armed without value",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\nassertions: [{type: armed}]\n",
			want: "value is required for armed",
		},
		{
			name: "certified without services",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\nassertions: [{type: certified}]\n",
			want: "services is required for certified",
		},
		{
			name: "unknown assertion type",
			yaml: "name: x\ndescription: x\nsut: S\ncatalogue: [A]\nassertions: [{type: trace_order}]\n",
			want: `unknown assertion type "trace_order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_EmptyServicesList(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: x
description: x
sut: S
catalogue: [A]
assertions:
  - type: certified
    services: []
`))
	require.NoError(t, err)
	assert.NotNil(t, scenario.Assertions[0].Services)
}

func TestLoadScenario_ResolvesCatalogueFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "sut_joined_before_monitor.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "catalogues", "sample.cue"), scenario.CatalogueFile)

	cat, err := scenario.LoadCatalogue()
	require.NoError(t, err)
	assert.Equal(t, []string{"connect", "createFederationExecution", "joinFederationExecution", "A"}, cat.Names())
}

func TestLoadScenario_MissingCatalogueFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: x
description: x
sut: S
catalogue_file: absent.cue
assertions: [{type: verdict, outcome: passed}]
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalogue file not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestFindScenarios(t *testing.T) {
	files, err := FindScenarios("testdata", "e2e_*")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "e2e_discovery_and_report.yaml"),
		filepath.Join("testdata", "e2e_failed_invocation.yaml"),
		filepath.Join("testdata", "e2e_first_match_wins.yaml"),
		filepath.Join("testdata", "e2e_removal_seeds_teardown.yaml"),
	}, files)

	_, err = FindScenarios("testdata", "[")
	assert.Error(t, err)

	_, err = FindScenarios(filepath.Join("testdata", "absent"), "")
	var dirErr *ScenarioDirError
	assert.ErrorAs(t, err, &dirErr)
}
