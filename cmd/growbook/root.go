package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"growbook/internal/app"
	"growbook/internal/principal"
	"growbook/pkg/domain"
)

type cli struct {
	out, errOut io.Writer

	configPath string
	format     string
	principal  string
	logLevel   string

	cfg app.Config
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:           "growbook",
		Short:         "growbook - plant cultivation records",
		Long:          "growbook keeps owner-scoped records of grow environments and QR-tagged plants,\nand archives plant photos.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("principal") {
				cfg.Principal = c.principal
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = c.logLevel
			}
			if _, err := app.ParseLevel(cfg.Log.Level); err != nil {
				return err
			}
			if _, err := parseFormat(c.format); err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ./growbook.{yaml,toml,json} when present)")
	flags.StringVarP(&c.format, "format", "o", string(formatTable), "output format: json, yaml or table")
	flags.StringVar(&c.principal, "principal", "", "principal id to act as (overrides GROWBOOK_PRINCIPAL)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(c.envCmd(), c.plantCmd(), c.photoCmd(), c.configCmd())
	return root
}

// session opens an app context bound to the configured principal.
func (c *cli) session(ctx context.Context) (*app.Context, error) {
	logger := app.NewLogger(c.errOut, c.cfg.Log.Level)
	return app.NewSessionContext(ctx, c.cfg, principal.Static(c.cfg.Principal), app.WithLogger(logger))
}

// withSession runs fn against a fresh session and closes it afterwards.
func (c *cli) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *app.Context) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(ctx, s)
}

func (c *cli) render(v any, table func(t *tableWriter)) error {
	f, _ := parseFormat(c.format)
	return render(c.out, f, v, table)
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Exit codes.
const (
	exitError           = 1
	exitUnauthenticated = 2
	exitNotFound        = 3
	exitConflict        = 4
	exitInvalid         = 5
	exitUnavailable     = 6
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return exitUnauthenticated
	case errors.Is(err, domain.ErrNotFoundOrForbidden):
		return exitNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return exitConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return exitInvalid
	case errors.Is(err, domain.ErrStoreUnavailable):
		return exitUnavailable
	}
	return exitError
}
