package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// checkFixture is a directory holding a complete set of check inputs.
type checkFixture struct {
	dir       string
	params    string
	catalogue string
	script    string
	results   string
}

// newCheckFixture writes parameters with a zero-length observation window,
// a catalogue of services and a script for the simulated RTI.
func newCheckFixture(t *testing.T, services []string, script string) checkFixture {
	t.Helper()
	dir := t.TempDir()
	f := checkFixture{
		dir:       dir,
		params:    filepath.Join(dir, "params.json"),
		catalogue: filepath.Join(dir, "services.yaml"),
		script:    filepath.Join(dir, "script.yaml"),
		results:   filepath.Join(dir, "results"),
	}

	fom := filepath.Join(dir, "fom.xml")
	som := filepath.Join(dir, "som.xml")
	writeFile(t, fom, "<objectModel/>")
	writeFile(t, som, "<objectModel/>")
	require.NoError(t, os.Mkdir(f.results, 0o755))

	doc := map[string]any{
		"federationName":  "TheFederation",
		"sutName":         "SUT1",
		"rtiAddress":      "localhost",
		"rtiPort":         "8989",
		"resultDirectory": f.results,
		"fomFiles":        []any{map[string]any{"fileName": fom}},
		"somFiles":        []any{map[string]any{"fileName": som}},
		"testDuration":    "0",
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	writeFile(t, f.params, string(data))

	var cat bytes.Buffer
	cat.WriteString("services:\n")
	for _, s := range services {
		cat.WriteString("  - " + s + "\n")
	}
	writeFile(t, f.catalogue, cat.String())
	writeFile(t, f.script, "steps:\n"+script)
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// execute runs cmd with args and returns stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// isolateConfig keeps the developer's environment out of the run.
func isolateConfig(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HLASERVICES_CONFIG",
		"HLASERVICES_LOG_LEVEL",
		"HLASERVICES_METRICS_ADDRESS",
		"HLASERVICES_STORE_PATH",
		"HLASERVICES_REPORT_SUMMARY",
	} {
		t.Setenv(key, "")
	}
}
