package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationError is one problem found in an input file.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Services int               `json:"services,omitempty"`
	Steps    int               `json:"steps,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	Catalogue string
	Script    string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <params.json>",
		Short: "Validate check inputs without running",
		Long: `Validate the test parameters, the expected-service catalogue and an
optional simulated RTI script.

Checks the parameter schema, that the FOM and SOM files exist, that the
catalogue is non-empty with unique service names and that every script
step is well formed. Nothing is joined and no report is written.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalogue, "catalogue", "", "expected-service catalogue (.cue or .yaml)")
	cmd.Flags().StringVar(&opts.Script, "script", "", "simulated RTI script (.yaml)")
	_ = cmd.MarkFlagRequired("catalogue")

	return cmd
}

func runValidate(rootOpts *RootOptions, opts *ValidateOptions, paramsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   rootOpts.Verbose,
	}

	inputs, loadErrs := LoadInputs(InputPaths{Params: paramsPath, Catalogue: opts.Catalogue, Script: opts.Script})

	result := ValidationResult{Valid: true}
	for _, err := range loadErrs {
		result.Errors = append(result.Errors, toValidationError(err))
	}

	if p := inputs.Params; p != nil {
		formatter.VerboseLog("Loaded test parameters for SUT %s", p.SUTName)
		if err := p.CheckFiles(); err != nil {
			result.Errors = append(result.Errors, toValidationError(&LoadError{Code: ErrCodeParams, Field: "files", Message: "FOM/SOM files", Err: err}))
		}
	}
	if inputs.Catalogue != nil {
		result.Services = inputs.Catalogue.Len()
		formatter.VerboseLog("Catalogue lists %d service(s)", result.Services)
	}
	if inputs.Script != nil {
		result.Steps = len(inputs.Script.Steps)
		formatter.VerboseLog("Script has %d step(s)", result.Steps)
	}

	if len(result.Errors) > 0 {
		result.Valid = false
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func toValidationError(err error) ValidationError {
	var le *LoadError
	if errors.As(err, &le) {
		return ValidationError{Code: le.Code, Field: le.Field, Message: le.Error()}
	}
	return ValidationError{Code: ErrCodeGeneric, Field: "input", Message: err.Error()}
}

// outputValidationErrors outputs validation errors and returns an appropriate exit error.
func outputValidationErrors(f *OutputFormatter, result ValidationResult) error {
	if f.Format == "json" {
		_ = f.JSON(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: fmt.Sprintf("%d validation error(s)", len(result.Errors)),
			},
		})
	} else {
		fmt.Fprintf(f.Writer, "Validation failed with %d error(s):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(f.Writer, "  [%s] %s: %s\n", e.Code, e.Field, e.Message)
		}
	}
	return NewExitError(ExitFailure, "validation failed")
}

func outputValidateSuccess(f *OutputFormatter, result ValidationResult) error {
	if f.Format == "json" {
		return f.JSON(CLIResponse{Status: "ok", Data: result})
	}
	fmt.Fprintf(f.Writer, "Validation passed: %d service(s)", result.Services)
	if result.Steps > 0 {
		fmt.Fprintf(f.Writer, ", %d script step(s)", result.Steps)
	}
	fmt.Fprintln(f.Writer)
	return nil
}
