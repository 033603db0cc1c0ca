package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kommetio/reportgrid/internal/service"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report query endpoint over HTTP",
		Long: `Start the HTTP server exposing POST /query. Requests carry either a
structured query specification or platform query text, and select an output
format (json, csv, xlsx).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8085", "listen address")

	return cmd
}

func runServe(opts *ServeOptions) error {
	log, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	engine, s, err := openEngine(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	log.Info("serving report queries",
		zap.String("addr", opts.Addr),
		zap.String("schema", opts.Schema),
		zap.String("db", opts.DB))

	srv := &http.Server{Addr: opts.Addr, Handler: service.Handler(engine, nil, log)}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("serve on %s", opts.Addr), Err: err}
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
