package catalogue

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Entry is one declared service and whether the SUT is expected to exercise it.
type Entry struct {
	Name     string
	Expected bool
}

// Load reads a catalogue document, choosing the decoder by file extension
// (.cue, .yaml, .yml).
//
// Both formats accept the services either as a list of names (all expected)
// or as an ordered mapping from name to an "expected" boolean:
//
//	services: ["connect", "joinFederationExecution"]
//	services: {connect: true, requestFederationSave: false}
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}

	var entries []Entry
	switch ext := filepath.Ext(path); ext {
	case ".cue":
		entries, err = parseCUE(path, data)
	case ".yaml", ".yml":
		entries, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("catalogue %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}

	c, err := FromEntries(entries)
	if err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}
	return c, nil
}

// FromEntries keeps the expected entries in order and builds a catalogue.
func FromEntries(entries []Entry) (*Catalogue, error) {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Expected {
			names = append(names, e.Name)
		}
	}
	return New(names)
}

func parseCUE(path string, data []byte) ([]Entry, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	services := value.LookupPath(cue.ParsePath("services"))
	if !services.Exists() {
		return nil, fmt.Errorf("services field is required")
	}

	switch services.IncompleteKind() {
	case cue.ListKind:
		iter, err := services.List()
		if err != nil {
			return nil, err
		}
		var entries []Entry
		for i := 0; iter.Next(); i++ {
			name, err := iter.Value().String()
			if err != nil {
				return nil, fmt.Errorf("services[%d]: %w", i, err)
			}
			entries = append(entries, Entry{Name: name, Expected: true})
		}
		return entries, nil

	case cue.StructKind:
		iter, err := services.Fields()
		if err != nil {
			return nil, err
		}
		var entries []Entry
		for iter.Next() {
			expected, err := iter.Value().Bool()
			if err != nil {
				return nil, fmt.Errorf("services.%s: %w", iter.Label(), err)
			}
			entries = append(entries, Entry{Name: iter.Label(), Expected: expected})
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("services must be a list or a struct, got %v", services.IncompleteKind())
	}
}

type yamlDocument struct {
	Services yaml.Node `yaml:"services"`
}

func parseYAML(data []byte) ([]Entry, error) {
	var doc yamlDocument
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	node := doc.Services
	switch node.Kind {
	case yaml.SequenceNode:
		entries := make([]Entry, 0, len(node.Content))
		for i, item := range node.Content {
			var name string
			if err := item.Decode(&name); err != nil {
				return nil, fmt.Errorf("services[%d]: %w", i, err)
			}
			entries = append(entries, Entry{Name: name, Expected: true})
		}
		return entries, nil

	case yaml.MappingNode:
		entries := make([]Entry, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var name string
			var expected bool
			if err := node.Content[i].Decode(&name); err != nil {
				return nil, fmt.Errorf("services key %d: %w", i/2, err)
			}
			if err := node.Content[i+1].Decode(&expected); err != nil {
				return nil, fmt.Errorf("services.%s: %w", name, err)
			}
			entries = append(entries, Entry{Name: name, Expected: expected})
		}
		return entries, nil

	case 0:
		return nil, fmt.Errorf("services field is required")

	default:
		return nil, fmt.Errorf("services must be a sequence or a mapping")
	}
}
