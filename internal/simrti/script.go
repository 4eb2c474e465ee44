package simrti

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hlaservices/internal/hla"
)

// Script is a sequence of federate actions replayed against an RTI.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Step is one scripted action. Exactly one field must be set.
type Step struct {
	// Join connects a new federate and joins it under Name.
	Join *JoinStep `yaml:"join,omitempty"`

	// Report has a federate invoke a service.
	Report *ReportStep `yaml:"report,omitempty"`

	// Resign resigns and disconnects the federate with this alias.
	Resign string `yaml:"resign,omitempty"`

	// Update re-reflects a federate's HLAfederateName with a new value.
	Update *UpdateStep `yaml:"update,omitempty"`

	// Malformed sends a corrupt payload for one field.
	// Fields: "name" (HLAfederateName), "service", "success".
	Malformed *MalformedStep `yaml:"malformed,omitempty"`

	// RTIVersion changes the reflected HLARTIversion.
	RTIVersion string `yaml:"rti_version,omitempty"`

	// Fail injects a failure into the next call of an RTI operation.
	Fail string `yaml:"fail,omitempty"`

	// Wait sleeps for a Go duration ("50ms").
	Wait string `yaml:"wait,omitempty"`
}

// JoinStep joins a federate. As names the federate in later steps and
// defaults to Name; two federates declaring the same name need distinct
// aliases.
type JoinStep struct {
	Name string `yaml:"name"`
	As   string `yaml:"as,omitempty"`
}

// UnmarshalYAML accepts either "join: SUT1" or "join: {name: SUT1, as: b}".
func (j *JoinStep) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&j.Name)
	}
	type plain JoinStep
	var p plain
	if err := decodeStrict(node, &p); err != nil {
		return err
	}
	*j = JoinStep(p)
	return nil
}

// Alias returns the name later steps use for this federate.
func (j *JoinStep) Alias() string {
	if j.As != "" {
		return j.As
	}
	return j.Name
}

// ReportStep has Federate invoke Service. Success defaults to true.
type ReportStep struct {
	Federate string `yaml:"federate"`
	Service  string `yaml:"service"`
	Success  *bool  `yaml:"success,omitempty"`
}

// UpdateStep re-declares a federate's name.
type UpdateStep struct {
	Federate string `yaml:"federate"`
	Name     string `yaml:"name"`
}

// MalformedStep corrupts one field of a federate's next payload.
type MalformedStep struct {
	Federate string `yaml:"federate"`
	Field    string `yaml:"field"`
}

// Malformed payload fields.
const (
	FieldName    = "name"
	FieldService = "service"
	FieldSuccess = "success"
)

// Kind names the action of a step for logs and errors.
func (s Step) Kind() string {
	switch {
	case s.Join != nil:
		return "join"
	case s.Report != nil:
		return "report"
	case s.Resign != "":
		return "resign"
	case s.Update != nil:
		return "update"
	case s.Malformed != nil:
		return "malformed"
	case s.RTIVersion != "":
		return "rti_version"
	case s.Fail != "":
		return "fail"
	case s.Wait != "":
		return "wait"
	default:
		return ""
	}
}

// Validate checks that exactly one action is set and its fields are usable.
func (s Step) Validate() error {
	set := 0
	for _, ok := range []bool{
		s.Join != nil, s.Report != nil, s.Resign != "", s.Update != nil,
		s.Malformed != nil, s.RTIVersion != "", s.Fail != "", s.Wait != "",
	} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("step must set exactly one action, got %d", set)
	}

	switch {
	case s.Join != nil:
		if s.Join.Name == "" {
			return fmt.Errorf("join: name is required")
		}
	case s.Report != nil:
		if s.Report.Federate == "" || s.Report.Service == "" {
			return fmt.Errorf("report: federate and service are required")
		}
	case s.Update != nil:
		if s.Update.Federate == "" {
			return fmt.Errorf("update: federate is required")
		}
	case s.Malformed != nil:
		if s.Malformed.Federate == "" {
			return fmt.Errorf("malformed: federate is required")
		}
		switch s.Malformed.Field {
		case FieldName, FieldService, FieldSuccess:
		default:
			return fmt.Errorf("malformed: unknown field %q", s.Malformed.Field)
		}
	case s.Fail != "":
		if !operations[s.Fail] {
			return fmt.Errorf("fail: unknown RTI operation %q", s.Fail)
		}
	case s.Wait != "":
		if _, err := time.ParseDuration(s.Wait); err != nil {
			return fmt.Errorf("wait: %w", err)
		}
	}
	return nil
}

// ValidateSteps validates every step, reporting the first bad index.
func ValidateSteps(steps []Step) error {
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// LoadScript reads a script file. Unknown fields are rejected.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return ParseScript(data)
}

// ParseScript parses and validates a script document.
func ParseScript(data []byte) (*Script, error) {
	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := ValidateSteps(script.Steps); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &script, nil
}

// Runner replays steps against an RTI on behalf of scripted federates.
type Runner struct {
	rti        *RTI
	federation string
	logger     *slog.Logger
	federates  map[string]*Ambassador

	// Settle, if set, runs after every step. Harnesses use it to wait until
	// the monitor has drained the callbacks the step produced.
	Settle func(ctx context.Context) error
}

// NewRunner returns a runner joining federates to federation.
func NewRunner(rti *RTI, federation string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		rti:        rti,
		federation: federation,
		logger:     logger,
		federates:  make(map[string]*Ambassador),
	}
}

// Federate returns the scripted federate with alias, or nil.
func (r *Runner) Federate(alias string) *Ambassador {
	return r.federates[alias]
}

// Run applies steps in order and stops at the first error or when ctx ends.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Apply(ctx, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Kind(), err)
		}
	}
	return nil
}

// Apply performs one step and then settles.
func (r *Runner) Apply(ctx context.Context, step Step) error {
	if err := step.Validate(); err != nil {
		return err
	}
	r.logger.Debug("simrti step", "kind", step.Kind())

	if err := r.apply(ctx, step); err != nil {
		return err
	}
	if r.Settle != nil {
		return r.Settle(ctx)
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, step Step) error {
	switch {
	case step.Join != nil:
		alias := step.Join.Alias()
		if _, taken := r.federates[alias]; taken {
			return fmt.Errorf("federate alias %q already joined", alias)
		}
		amb := r.rti.NewAmbassador()
		if err := amb.Connect(nil, "crcAddress=simrti"); err != nil {
			return fmt.Errorf("connect %s: %w", alias, err)
		}
		if _, err := amb.JoinFederationExecution(step.Join.Name, "scripted", r.federation); err != nil {
			return fmt.Errorf("join %s: %w", alias, err)
		}
		r.federates[alias] = amb
		return nil

	case step.Report != nil:
		amb, err := r.lookup(step.Report.Federate)
		if err != nil {
			return err
		}
		success := true
		if step.Report.Success != nil {
			success = *step.Report.Success
		}
		return amb.Invoke(step.Report.Service, success)

	case step.Resign != "":
		amb, err := r.lookup(step.Resign)
		if err != nil {
			return err
		}
		if err := amb.ResignFederationExecution(); err != nil {
			return fmt.Errorf("resign %s: %w", step.Resign, err)
		}
		if err := amb.Disconnect(); err != nil {
			return fmt.Errorf("disconnect %s: %w", step.Resign, err)
		}
		delete(r.federates, step.Resign)
		return nil

	case step.Update != nil:
		amb, err := r.lookup(step.Update.Federate)
		if err != nil {
			return err
		}
		return amb.Redeclare(step.Update.Name)

	case step.Malformed != nil:
		amb, err := r.lookup(step.Malformed.Federate)
		if err != nil {
			return err
		}
		// An odd byte count can never be a UTF-16 HLAunicodeString.
		garbage := []byte{0, 0, 0, 9, 'x'}
		switch step.Malformed.Field {
		case FieldName:
			return amb.RedeclareRaw(garbage)
		case FieldService:
			return amb.InvokeRaw(garbage, hla.EncodeBoolean(true))
		default:
			return amb.InvokeRaw(hla.MustEncodeUnicodeString("malformed"), []byte{0, 0, 0, 7})
		}

	case step.RTIVersion != "":
		r.rti.SetVersion(step.RTIVersion)
		return nil

	case step.Fail != "":
		return r.rti.InjectFailure(step.Fail, nil)

	case step.Wait != "":
		d, _ := time.ParseDuration(step.Wait)
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	return nil
}

func (r *Runner) lookup(alias string) (*Ambassador, error) {
	amb, ok := r.federates[alias]
	if !ok {
		return nil, fmt.Errorf("no scripted federate %q", alias)
	}
	return amb, nil
}

// decodeStrict decodes node into v rejecting unknown fields.
func decodeStrict(node *yaml.Node, v any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(v)
}
