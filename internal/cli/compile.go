package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
}

// compileOutput is the JSON payload of a successful compile.
type compileOutput struct {
	Query    string   `json:"query"`
	BaseType string   `json:"baseType"`
	Columns  []string `json:"columns"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "compile <jcr.json>",
		Short: "Compile a JCR file to platform query text",
		Long: `Compile a structured query specification (JCR) to its platform query text.

The JCR is validated against the schema first; validation failures are
reported as error keys and exit with status 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}
}

func runCompile(opts *CompileOptions, jcrPath string, cmd *cobra.Command) error {
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

	comp := compiler.New(reg, nil)
	res, err := comp.Compile(auth.System(), j)
	if err != nil {
		var verr *compiler.ValidationError
		if errors.As(err, &verr) {
			formatter.Errors(verr.Keys)
			return &ExitError{Code: ExitFailure, Message: "JCR is invalid"}
		}
		return err
	}

	formatter.VerboseLog("base type %s, %d columns", res.BaseType.Name, len(res.Columns))

	if opts.Format == "json" {
		cols := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			cols[i] = c.Key()
		}
		return formatter.Success(compileOutput{Query: res.Text, BaseType: res.BaseType.Name, Columns: cols})
	}
	return formatter.Success(res.Text)
}
