package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hlaservices/internal/catalogue"
	"github.com/roach88/hlaservices/internal/observation"
	"github.com/roach88/hlaservices/internal/simrti"
)

// DefaultFederation is used when a scenario does not name one.
const DefaultFederation = "TheFederation"

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SUT is the federate name the monitor looks for.
	SUT string `yaml:"sut"`

	// Federation defaults to DefaultFederation.
	Federation string `yaml:"federation,omitempty"`

	// Catalogue lists the expected services inline. CatalogueFile names a
	// CUE or YAML catalogue instead, relative to the scenario file.
	Catalogue     []string `yaml:"catalogue,omitempty"`
	CatalogueFile string   `yaml:"catalogue_file,omitempty"`

	// RTI configures the simulated RTI.
	RTI *RTIOptions `yaml:"rti,omitempty"`

	// Setup steps run before the monitor joins. They can pre-join
	// federates or inject failures into the monitor's own setup calls.
	Setup []simrti.Step `yaml:"setup,omitempty"`

	// Steps run while the monitor is live.
	Steps []simrti.Step `yaml:"steps,omitempty"`

	// Expect describes how monitor setup should end. Nil means it succeeds.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the monitor's final state.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is a fixed run ID for deterministic ledgers.
	// Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// RTIOptions configures the simulated RTI.
type RTIOptions struct {
	// Version is the initial HLARTIversion.
	Version string `yaml:"version,omitempty"`

	// UnqualifiedNames makes the RTI report class names without the
	// "HLAmanager." prefix, as some RTIs do.
	UnqualifiedNames bool `yaml:"unqualified_names,omitempty"`
}

// ExpectClause specifies the expected setup result.
type ExpectClause struct {
	// Init is "ok" or "setup_error".
	Init string `yaml:"init"`
}

// Init outcomes.
const (
	InitOK         = "ok"
	InitSetupError = "setup_error"
)

// ExpectedInit returns the expected Init outcome.
func (s *Scenario) ExpectedInit() string {
	if s.Expect == nil || s.Expect.Init == "" {
		return InitOK
	}
	return s.Expect.Init
}

// FederationName returns the federation to create.
func (s *Scenario) FederationName() string {
	if s.Federation == "" {
		return DefaultFederation
	}
	return s.Federation
}

// LoadCatalogue returns the scenario's expected-service catalogue.
func (s *Scenario) LoadCatalogue() (*catalogue.Catalogue, error) {
	if s.CatalogueFile != "" {
		return catalogue.Load(s.CatalogueFile)
	}
	return catalogue.New(s.Catalogue)
}

// Assertion validates the monitor's final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "verdict": Outcome is "passed" or "failed"
	// - "certified", "non_certified": Services in catalogue order
	// - "observed": Service was observed, with Source if set
	// - "identity": tracked SUT has Name and the handle of Federate, or is Absent
	// - "armed": Value is whether reporting was enabled
	// - "lifecycle": State is the final lifecycle state
	// - "event_count": Count events were handled with Outcome
	Type string `yaml:"type"`

	Outcome  string   `yaml:"outcome,omitempty"`
	Services []string `yaml:"services,omitempty"`
	Service  string   `yaml:"service,omitempty"`
	Source   string   `yaml:"source,omitempty"`
	Name     string   `yaml:"name,omitempty"`
	Federate string   `yaml:"federate,omitempty"`
	Absent   bool     `yaml:"absent,omitempty"`
	Value    *bool    `yaml:"value,omitempty"`
	State    string   `yaml:"state,omitempty"`
	Count    int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertVerdict      = "verdict"
	AssertCertified    = "certified"
	AssertNonCertified = "non_certified"
	AssertObserved     = "observed"
	AssertIdentity     = "identity"
	AssertArmed        = "armed"
	AssertLifecycle    = "lifecycle"
	AssertEventCount   = "event_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative catalogue_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving catalogue_file relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if f := scenario.CatalogueFile; f != "" && !filepath.IsAbs(f) && basePath != "" {
		scenario.CatalogueFile = filepath.Join(basePath, f)
	}
	if scenario.CatalogueFile != "" {
		if _, err := os.Stat(scenario.CatalogueFile); err != nil {
			return nil, fmt.Errorf("invalid scenario: catalogue file not found: %s", scenario.CatalogueFile)
		}
	}
	return scenario, nil
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.SUT == "" {
		return fmt.Errorf("sut is required")
	}

	switch {
	case len(s.Catalogue) > 0 && s.CatalogueFile != "":
		return fmt.Errorf("catalogue and catalogue_file are mutually exclusive")
	case len(s.Catalogue) == 0 && s.CatalogueFile == "":
		return fmt.Errorf("catalogue list is required and must be non-empty")
	}

	if err := simrti.ValidateSteps(s.Setup); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := simrti.ValidateSteps(s.Steps); err != nil {
		return fmt.Errorf("steps: %w", err)
	}

	switch s.ExpectedInit() {
	case InitOK, InitSetupError:
	default:
		return fmt.Errorf("expect.init: unknown value %q", s.Expect.Init)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertVerdict:
		if a.Outcome != "passed" && a.Outcome != "failed" {
			return fmt.Errorf("assertions[%d]: outcome must be passed or failed for verdict", index)
		}
	case AssertCertified, AssertNonCertified:
		if a.Services == nil {
			return fmt.Errorf("assertions[%d]: services is required for %s (use [] for none)", index, a.Type)
		}
	case AssertObserved:
		if a.Service == "" {
			return fmt.Errorf("assertions[%d]: service is required for observed", index)
		}
		if _, ok := observation.ParseSource(a.Source); !ok {
			return fmt.Errorf("assertions[%d]: unknown source %q", index, a.Source)
		}
	case AssertIdentity:
		if !a.Absent && a.Name == "" {
			return fmt.Errorf("assertions[%d]: name or absent is required for identity", index)
		}
	case AssertArmed:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for armed", index)
		}
	case AssertLifecycle:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for lifecycle", index)
		}
	case AssertEventCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
