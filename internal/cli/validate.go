package cli

import (
	"github.com/spf13/cobra"

	"github.com/kommetio/reportgrid/internal/jcr"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <jcr.json>",
		Short: "Validate a JCR file against the schema",
		Long: `Validate a structured query specification (JCR) against the schema.

All validation failures are reported, not just the first. Exit status is 1
when the JCR is invalid.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, jcrPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	reg, err := loadRegistry(opts.Schema)
	if err != nil {
		return err
	}
	j, err := loadJCRFile(jcrPath)
	if err != nil {
		return err
	}

	if keys := jcr.Validate(j, reg); len(keys) > 0 {
		formatter.Errors(keys)
		return &ExitError{Code: ExitFailure, Message: "JCR is invalid"}
	}
	return formatter.Success("valid")
}
