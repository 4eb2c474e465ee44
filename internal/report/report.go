// Package report writes the certified and non-certified service reports of
// a run, and an optional JSON summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/hlaservices/internal/observation"
)

// StampLayout formats the run date in file names and headers.
const StampLayout = "2006_01_02_15h04m05s"

// File name prefixes.
const (
	certifiedPrefix    = "HLA_Services_certified_services_"
	nonCertifiedPrefix = "HLA_Services_non_certified_services_"
	summaryPrefix      = "HLA_Services_summary_"
)

const banner = "###########################################################"

// Category selects which partition a report lists.
type Category int

const (
	Certified Category = iota
	NonCertified
)

func (c Category) explanation() string {
	if c == Certified {
		return "Services invoked by the SUT during the test (certified services)."
	}
	return "Services expected from the SUT but not invoked during the test (non-certified services)."
}

const sourceNote = "Source: \"report\" means the RTI reported a successful invocation;\n" +
	"\"lifecycle\" means the service was implied by the SUT joining or leaving the federation."

// Input is everything a report needs about a finished run.
type Input struct {
	RunID      string
	Federation string
	SUTName    string
	Date       time.Time

	// Identity describes the tracked SUT, empty if it was never discovered.
	Identity *Identity

	Verdict observation.Verdict

	// Width is the service column width, usually the catalogue's longest name.
	Width int

	Events int64
}

// Identity is the tracked SUT as written to the summary.
type Identity struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Object string `json:"object"`
}

// Stamp returns the formatted run date.
func (in Input) Stamp() string {
	return in.Date.Format(StampLayout)
}

// Render writes one category report to w.
func Render(w io.Writer, category Category, in Input) error {
	var b strings.Builder

	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "Results for SUT %q\n", in.SUTName)
	fmt.Fprintf(&b, "Date : %s\n\n", in.Stamp())
	b.WriteString(category.explanation() + "\n\n")
	b.WriteString(sourceNote + "\n")
	b.WriteString(banner + "\n\n")

	width := in.Width
	if width < len("Service") {
		width = len("Service")
	}
	fmt.Fprintf(&b, "%s %s\n", pad("Service", width), "Source")

	entries := in.Verdict.Certified
	if category == NonCertified {
		entries = in.Verdict.NonCertified
	}
	for _, e := range entries {
		source := e.Source.String()
		if !e.Observed {
			source = "-"
		}
		fmt.Fprintf(&b, "%s %s\n", pad(e.Service, width), source)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// pad right-pads s with spaces to width runes.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// Summary is the JSON summary document.
type Summary struct {
	RunID        string          `json:"run_id,omitempty"`
	Federation   string          `json:"federation"`
	SUT          string          `json:"sut"`
	Date         string          `json:"date"`
	Verdict      string          `json:"verdict"`
	Identity     *Identity       `json:"identity,omitempty"`
	Events       int64           `json:"events"`
	Counts       Counts          `json:"counts"`
	Certified    []ServiceResult `json:"certified"`
	NonCertified []string        `json:"non_certified"`
}

// Counts summarizes the partition sizes.
type Counts struct {
	Total        int `json:"total"`
	Certified    int `json:"certified"`
	NonCertified int `json:"non_certified"`
}

// ServiceResult is one certified service and how it was observed.
type ServiceResult struct {
	Service string `json:"service"`
	Source  string `json:"source"`
}

// NewSummary builds the summary document for in.
func NewSummary(in Input) Summary {
	s := Summary{
		RunID:        in.RunID,
		Federation:   in.Federation,
		SUT:          in.SUTName,
		Date:         in.Stamp(),
		Verdict:      in.Verdict.Outcome(),
		Identity:     in.Identity,
		Events:       in.Events,
		Certified:    make([]ServiceResult, 0, len(in.Verdict.Certified)),
		NonCertified: in.Verdict.NonCertifiedNames(),
	}
	for _, e := range in.Verdict.Certified {
		s.Certified = append(s.Certified, ServiceResult{Service: e.Service, Source: e.Source.String()})
	}
	s.Counts = Counts{
		Total:        len(in.Verdict.Certified) + len(in.Verdict.NonCertified),
		Certified:    len(in.Verdict.Certified),
		NonCertified: len(in.Verdict.NonCertified),
	}
	return s
}

// RenderSummary writes the indented JSON summary to w.
func RenderSummary(w io.Writer, in Input) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewSummary(in))
}

// Paths are the files written for one run.
type Paths struct {
	Certified    string
	NonCertified string
	Summary      string
}

// All returns the written paths in order.
func (p Paths) All() []string {
	out := []string{p.Certified, p.NonCertified}
	if p.Summary != "" {
		out = append(out, p.Summary)
	}
	return out
}

// Write renders the reports into dir and logs where they went. The
// summary is written only when summary is true.
func Write(dir string, in Input, summary bool, logger *slog.Logger) (Paths, error) {
	stamp := in.Stamp()
	paths := Paths{
		Certified:    filepath.Join(dir, certifiedPrefix+stamp+".txt"),
		NonCertified: filepath.Join(dir, nonCertifiedPrefix+stamp+".txt"),
	}

	if err := writeFile(paths.Certified, func(w io.Writer) error { return Render(w, Certified, in) }); err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.NonCertified, func(w io.Writer) error { return Render(w, NonCertified, in) }); err != nil {
		return Paths{}, err
	}
	if summary {
		paths.Summary = filepath.Join(dir, summaryPrefix+stamp+".json")
		if err := writeFile(paths.Summary, func(w io.Writer) error { return RenderSummary(w, in) }); err != nil {
			return Paths{}, err
		}
	}

	if logger != nil {
		logger.Info("look at results files")
		for _, p := range paths.All() {
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			logger.Info(" - " + p)
		}
	}
	return paths, nil
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report %s: %w", path, cerr)
		}
	}()

	if err := render(f); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
