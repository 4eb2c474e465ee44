// Package catalogue holds the expected-service catalogue produced by FOM/SOM
// analysis: the closed, ordered set of HLA service names a system under test
// declares and is expected to exercise.
package catalogue

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrEmpty is returned when a catalogue declares no expected service.
var ErrEmpty = errors.New("catalogue declares no expected service")

// Catalogue is an immutable ordered set of expected service names.
// Order is declaration order and is preserved in every listing.
type Catalogue struct {
	names []string
	index map[string]int
}

// Normalize returns the canonical form of a service name. Names are compared
// after NFC normalization so that catalogue entries and decoded report
// payloads agree regardless of how the producer composed them.
func Normalize(name string) string {
	return norm.NFC.String(name)
}

// New builds a catalogue from names in declaration order.
// Names must be non-empty and unique after normalization.
func New(names []string) (*Catalogue, error) {
	if len(names) == 0 {
		return nil, ErrEmpty
	}

	c := &Catalogue{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, raw := range names {
		name := Normalize(raw)
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("service %d: name is empty", i)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("service %d: duplicate name %q", i, name)
		}
		c.index[name] = len(c.names)
		c.names = append(c.names, name)
	}
	return c, nil
}

// MustNew is New for fixed test catalogues.
func MustNew(names ...string) *Catalogue {
	c, err := New(names)
	if err != nil {
		panic(err)
	}
	return c
}

// Names returns the service names in declaration order.
func (c *Catalogue) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of expected services.
func (c *Catalogue) Len() int {
	return len(c.names)
}

// Contains reports whether name (after normalization) is expected.
func (c *Catalogue) Contains(name string) bool {
	_, ok := c.index[Normalize(name)]
	return ok
}

// Position returns the declaration index of name, or -1.
func (c *Catalogue) Position(name string) int {
	if i, ok := c.index[Normalize(name)]; ok {
		return i
	}
	return -1
}

// LongestName returns the length in runes of the longest service name.
// Report writers use it to size the service column.
func (c *Catalogue) LongestName() int {
	longest := 0
	for _, name := range c.names {
		if n := utf8.RuneCountInString(name); n > longest {
			longest = n
		}
	}
	return longest
}
