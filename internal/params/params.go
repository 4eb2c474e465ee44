// Package params loads the JSON test-parameter document of the services
// check. Every problem with the document is reported as an *Error, which
// the test case turns into an inconclusive outcome.
package params

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "https://hlaservices.local/params.schema.json"

// requiredFields lists the document keys in the order they are checked.
var requiredFields = []string{
	"federationName",
	"sutName",
	"rtiAddress",
	"rtiPort",
	"resultDirectory",
	"fomFiles",
	"somFiles",
	"testDuration",
}

// Error reports a missing or invalid test parameter.
type Error struct {
	// Field is the offending key, or a JSON pointer below it. Empty when
	// the document as a whole is unusable.
	Field string

	// Reason is a human-readable description.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field == "" {
		return "test parameters: " + e.Reason
	}
	return fmt.Sprintf("test parameters: %s: %s", e.Field, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsError reports whether err is a test-parameter problem.
func IsError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// Params are the parsed test parameters.
type Params struct {
	FederationName  string
	SUTName         string
	RTIAddress      string
	RTIPort         string
	ResultDirectory string
	FOMFiles        []string
	SOMFiles        []string

	// TestDuration is the observation window.
	TestDuration time.Duration
}

// SettingsDesignator returns the RTI connection settings string.
func (p *Params) SettingsDesignator() string {
	return "crcAddress=" + p.RTIAddress + ":" + p.RTIPort
}

// FOMURLs returns file URLs for the FOM modules.
func (p *Params) FOMURLs() ([]*url.URL, error) {
	urls := make([]*url.URL, 0, len(p.FOMFiles))
	for _, name := range p.FOMFiles {
		abs, err := filepath.Abs(name)
		if err != nil {
			return nil, &Error{Field: "fomFiles", Reason: fmt.Sprintf("cannot resolve %s", name), Err: err}
		}
		urls = append(urls, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
	}
	return urls, nil
}

// CheckFiles verifies that every FOM and SOM file exists. The files are
// not parsed.
func (p *Params) CheckFiles() error {
	for _, list := range []struct {
		field string
		files []string
	}{
		{"fomFiles", p.FOMFiles},
		{"somFiles", p.SOMFiles},
	} {
		for _, name := range list.files {
			info, err := os.Stat(name)
			if err != nil {
				return &Error{Field: list.field, Reason: fmt.Sprintf("cannot access %s", name), Err: err}
			}
			if info.IsDir() {
				return &Error{Field: list.field, Reason: fmt.Sprintf("%s is a directory", name)}
			}
		}
	}
	return nil
}

// CheckResultDirectory verifies that the result directory exists.
func (p *Params) CheckResultDirectory() error {
	info, err := os.Stat(p.ResultDirectory)
	if err != nil {
		return &Error{Field: "resultDirectory", Reason: fmt.Sprintf("cannot access %s", p.ResultDirectory), Err: err}
	}
	if !info.IsDir() {
		return &Error{Field: "resultDirectory", Reason: fmt.Sprintf("%s is not a directory", p.ResultDirectory)}
	}
	return nil
}

// Load reads and parses the parameter file at path.
func Load(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Reason: "failed to read parameter file", Err: err}
	}
	return Parse(data)
}

// Parse parses a parameter document. Required keys are checked in a fixed
// order so the first missing one is reported; the document is then
// validated against the embedded JSON schema.
func Parse(data []byte) (*Params, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, &Error{Reason: "invalid JSON", Err: err}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &Error{Reason: "document must be a JSON object"}
	}
	for _, field := range requiredFields {
		if _, ok := obj[field]; !ok {
			return nil, &Error{Field: field, Reason: "missing"}
		}
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile parameter schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, schemaError(err)
	}

	var raw document
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Reason: "invalid JSON", Err: err}
	}

	seconds, err := strconv.ParseInt(string(raw.TestDuration), 10, 64)
	if err != nil {
		return nil, &Error{Field: "testDuration", Reason: "not a base-10 integer", Err: err}
	}
	if seconds > int64(time.Duration(1<<63-1)/time.Second) {
		return nil, &Error{Field: "testDuration", Reason: "out of range"}
	}

	p := &Params{
		FederationName:  raw.FederationName,
		SUTName:         raw.SUTName,
		RTIAddress:      raw.RTIAddress,
		RTIPort:         string(raw.RTIPort),
		ResultDirectory: raw.ResultDirectory,
		TestDuration:    time.Duration(seconds) * time.Second,
	}
	for _, f := range raw.FOMFiles {
		p.FOMFiles = append(p.FOMFiles, f.FileName)
	}
	for _, f := range raw.SOMFiles {
		p.SOMFiles = append(p.SOMFiles, f.FileName)
	}
	return p, nil
}

// document mirrors the JSON layout.
type document struct {
	FederationName  string     `json:"federationName"`
	SUTName         string     `json:"sutName"`
	RTIAddress      string     `json:"rtiAddress"`
	RTIPort         textNumber `json:"rtiPort"`
	ResultDirectory string     `json:"resultDirectory"`
	FOMFiles        []fileRef  `json:"fomFiles"`
	SOMFiles        []fileRef  `json:"somFiles"`
	TestDuration    textNumber `json:"testDuration"`
}

type fileRef struct {
	FileName string `json:"fileName"`
}

// textNumber accepts a JSON string or integer and keeps its decimal text.
type textNumber string

func (n *textNumber) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = textNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = textNumber(num.String())
	return nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// schemaError names the field of the deepest validation failure.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &Error{Reason: "schema validation failed", Err: err}
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &Error{
		Field:  strings.TrimPrefix(leaf.InstanceLocation, "/"),
		Reason: leaf.Message,
		Err:    err,
	}
}
