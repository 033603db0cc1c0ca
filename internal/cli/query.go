package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kommetio/reportgrid/internal/auth"
	"github.com/kommetio/reportgrid/internal/export"
	"github.com/kommetio/reportgrid/internal/service"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Export     string // export format: json (default), csv, xlsx
	Output     string // output file for downloadable formats
	ExportName string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <dal-query>",
		Short: "Run a platform query against the record store",
		Long: `Run platform query text against the record store and print or export
the results.

With --export csv or --export xlsx the encoded table is written to the
--output file (default: derived from the base type).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Export, "export", "json", "export format (json|csv|xlsx)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file for csv/xlsx exports")
	cmd.Flags().StringVar(&opts.ExportName, "export-name", "", "base name for the export file")

	return cmd
}

func runQuery(opts *QueryOptions, queryText string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	format, err := export.ParseFormat(opts.Export)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: err.Error()}
	}

	engine, s, err := openEngine(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := engine.Run(cmd.Context(), auth.System(), service.Request{
		Query:      queryText,
		Format:     format,
		ExportName: opts.ExportName,
	})
	if err != nil {
		var cerr *service.ClientError
		if errors.As(err, &cerr) {
			formatter.Errors(cerr.Messages)
			return &ExitError{Code: ExitFailure, Message: "query failed"}
		}
		return err
	}

	if format == export.FormatJSON {
		if opts.Format == "json" {
			var rows any
			if err := json.Unmarshal(resp.Body, &rows); err != nil {
				return err
			}
			return formatter.Success(rows)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(resp.Body))
		return nil
	}

	out := opts.Output
	if out == "" {
		out = resp.FileName
	}
	if err := writeFile(out, resp.Body); err != nil {
		return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("write %s", out), Err: err}
	}
	formatter.VerboseLog("wrote %d bytes to %s", len(resp.Body), out)
	return formatter.Success(out)
}
