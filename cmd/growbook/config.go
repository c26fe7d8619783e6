package main

import (
	"github.com/spf13/cobra"

	"growbook/internal/app"
)

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := c.cfg.Redacted()
			return c.render(cfg, func(t *tableWriter) {
				t.row("KEY", "VALUE")
				t.row("source", orDash(cfg.Source))
				t.row("storage.driver", cfg.Storage.Driver)
				t.row("sqlite.path", cfg.SQLite.Path)
				t.row("postgres.dsn", cfg.Postgres.DSN)
				t.row("redis.url", cfg.Redis.URL)
				t.row("redis.prefix", cfg.Redis.Prefix)
				t.row("firestore.project", orDash(cfg.Firestore.Project))
				t.row("photo.driver", cfg.Photo.Driver)
				t.row("photo.fs_root", cfg.Photo.FSRoot)
				t.row("photo.s3_bucket", orDash(cfg.Photo.S3Bucket))
				t.row("analyzer.url", orDash(cfg.Analyzer.URL))
				t.row("log.level", cfg.Log.Level)
				t.row("metrics", cfg.Metrics)
				t.row("principal", orDash(cfg.Principal))
			})
		},
	}
	env := &cobra.Command{
		Use:   "env",
		Short: "List supported environment variables",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, name := range app.EnvVars() {
				c.printf("%s\n", name)
			}
			return nil
		},
	}
	cmd.AddCommand(show, env)
	return cmd
}
