package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/hlaservices/internal/catalogue"
	"github.com/roach88/hlaservices/internal/params"
	"github.com/roach88/hlaservices/internal/simrti"
)

// LoadError reports an input file that could not be used.
type LoadError struct {
	Code    string
	Field   string // input name: "params", "catalogue", "script", or a params field
	Message string
	Path    string
	Err     error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SetupFailure reports whether the error is a malformed test parameter
// file or catalogue, which makes the verdict inconclusive. An input file
// that cannot be read at all, or a bad RTI script, is a command error.
func (e *LoadError) SetupFailure() bool {
	if e.Code != ErrCodeParams && e.Code != ErrCodeCatalogue {
		return false
	}
	var pathErr *fs.PathError
	return !errors.As(e.Err, &pathErr) || pathErr.Path != e.Path
}

// Inputs are the files a check reads.
type Inputs struct {
	Params    *params.Params
	Catalogue *catalogue.Catalogue
	Script    *simrti.Script
}

// InputPaths names the input files. Script is optional.
type InputPaths struct {
	Params    string
	Catalogue string
	Script    string
}

// LoadInputs loads every input, collecting one error per file.
// Inputs that fail to load are nil in the result.
func LoadInputs(paths InputPaths) (*Inputs, []error) {
	var in Inputs
	var errs []error

	p, err := params.Load(paths.Params)
	if err != nil {
		le := &LoadError{Code: ErrCodeParams, Field: "params", Message: fmt.Sprintf("test parameters %s", paths.Params), Path: paths.Params, Err: err}
		var pe *params.Error
		if errors.As(err, &pe) && pe.Field != "" {
			le.Field = pe.Field
		}
		errs = append(errs, le)
	} else {
		in.Params = p
	}

	if paths.Catalogue == "" {
		errs = append(errs, &LoadError{Code: ErrCodeCatalogue, Field: "catalogue", Message: "no expected-service catalogue given"})
	} else if cat, err := catalogue.Load(paths.Catalogue); err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeCatalogue, Field: "catalogue", Message: fmt.Sprintf("catalogue %s", paths.Catalogue), Path: paths.Catalogue, Err: err})
	} else {
		in.Catalogue = cat
	}

	if paths.Script != "" {
		script, err := simrti.LoadScript(paths.Script)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeScript, Field: "script", Message: fmt.Sprintf("RTI script %s", paths.Script), Err: err})
		} else {
			in.Script = script
		}
	}

	return &in, errs
}
