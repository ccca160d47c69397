package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/provcheck/internal/engine"
	"github.com/roach88/provcheck/internal/harness"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool         `json:"valid"`
	Suite        string       `json:"suite"`
	Group        string       `json:"group"`
	Checks       []CheckEntry `json:"checks"`
	MaximumMarks int          `json:"maximum_marks"`
}

// CheckEntry describes one compiled check.
type CheckEntry struct {
	ID           string `json:"id"`
	MaximumMarks int    `json:"maximum_marks"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <suite>",
		Short: "Validate a suite without touching any host",
		Long: `Load and compile a check suite without resolving the inventory,
provisioning or connecting to the target.

Reports unknown fields, duplicate check IDs, invalid marks and assertions
missing their required fields.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, suitePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	suite, err := harness.LoadSuite(suitePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return formatter.Fail(ErrCodeSuiteNotFound, err.Error(),
				WrapExitError(ExitCommandError, "suite not found", err))
		}
		return formatter.Fail(ErrCodeSuiteInvalid, err.Error(),
			WrapExitError(ExitFailure, "suite is invalid", err))
	}

	checks, err := harness.Compile(suite)
	if err != nil {
		return formatter.Fail(ErrCodeSuiteInvalid, err.Error(),
			WrapExitError(ExitFailure, "suite is invalid", err))
	}

	result := validationResult(suite, checks)
	formatter.VerboseLog("Suite %s resolves group %s from %s", suite.Name, suite.Inventory.Group, suite.Inventory.Path)

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	for _, c := range result.Checks {
		fmt.Fprintf(formatter.Writer, "  %s (%d)\n", c.ID, c.MaximumMarks)
	}
	return formatter.Success(fmt.Sprintf("✓ Suite %s is valid: %d checks, %d marks", result.Suite, len(result.Checks), result.MaximumMarks))
}

func validationResult(suite *harness.Suite, checks []engine.Check) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Suite:  suite.Name,
		Group:  suite.Inventory.Group,
		Checks: make([]CheckEntry, len(checks)),
	}
	for i, c := range checks {
		result.Checks[i] = CheckEntry{ID: c.ID, MaximumMarks: c.Weight}
		result.MaximumMarks += c.Weight
	}
	return result
}
