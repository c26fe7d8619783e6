package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"growbook/internal/app"
	"growbook/pkg/domain"
)

func (c *cli) envCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "env",
		Aliases: []string{"environment"},
		Short:   "Manage grow environments",
	}
	cmd.AddCommand(c.envCreateCmd(), c.envGetCmd(), c.envListCmd(), c.envUpdateCmd(), c.envDeleteCmd())
	return cmd
}

func (c *cli) envCreateCmd() *cobra.Command {
	var (
		name      string
		capacity  int
		equipment []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := domain.EnvironmentInput{Name: name, Equipment: equipment}
			if cmd.Flags().Changed("capacity") {
				in.Capacity = &capacity
			}
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				env, err := s.Environments(nil).Create(ctx, in)
				if err != nil {
					return err
				}
				return c.renderEnvironments(env, []domain.Environment{env})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "environment name (required)")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "number of plants the environment holds")
	cmd.Flags().StringSliceVar(&equipment, "equipment", nil, "equipment list, comma separated")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) envGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				env, ok, err := s.Environments(nil).GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return domain.NotFoundError{Entity: domain.EntityEnvironment, ID: args[0]}
				}
				return c.renderEnvironments(env, []domain.Environment{env})
			})
		},
	}
}

func (c *cli) envListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your environments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				envs, err := s.Environments(nil).ListByOwner(ctx)
				if err != nil {
					return err
				}
				return c.renderEnvironments(envs, envs)
			})
		},
	}
}

func (c *cli) envUpdateCmd() *cobra.Command {
	var (
		name           string
		capacity       int
		equipment      []string
		clearCapacity  bool
		clearEquipment bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an environment; omitted fields keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.EnvironmentPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = domain.Set(name)
			}
			switch {
			case clearCapacity:
				patch.Capacity = domain.Set[*int](nil)
			case flags.Changed("capacity"):
				patch.Capacity = domain.Set(&capacity)
			}
			switch {
			case clearEquipment:
				patch.Equipment = domain.Set([]string{})
			case flags.Changed("equipment"):
				patch.Equipment = domain.Set(equipment)
			}
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				repo := s.Environments(nil)
				if err := repo.Update(ctx, args[0], patch); err != nil {
					return err
				}
				env, ok, err := repo.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return domain.NotFoundError{Entity: domain.EntityEnvironment, ID: args[0]}
				}
				return c.renderEnvironments(env, []domain.Environment{env})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "new capacity")
	cmd.Flags().StringSliceVar(&equipment, "equipment", nil, "replace the equipment list")
	cmd.Flags().BoolVar(&clearCapacity, "clear-capacity", false, "remove the capacity")
	cmd.Flags().BoolVar(&clearEquipment, "clear-equipment", false, "empty the equipment list")
	cmd.MarkFlagsMutuallyExclusive("capacity", "clear-capacity")
	cmd.MarkFlagsMutuallyExclusive("equipment", "clear-equipment")
	return cmd
}

func (c *cli) envDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an environment (its plants are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				if err := s.Environments(nil).Delete(ctx, args[0]); err != nil {
					return err
				}
				c.printf("deleted environment %s\n", args[0])
				return nil
			})
		},
	}
}

// renderEnvironments prints v (one record or a list) with rows as the table form.
func (c *cli) renderEnvironments(v any, envs []domain.Environment) error {
	return c.render(v, func(t *tableWriter) {
		t.row("ID", "NAME", "CAPACITY", "EQUIPMENT", "CREATED")
		for _, e := range envs {
			capacity := "-"
			if e.Capacity != nil {
				capacity = strconv.Itoa(*e.Capacity)
			}
			t.row(e.ID, e.Name, capacity, orDash(strings.Join(e.Equipment, ",")), orDash(e.CreatedAt))
		}
	})
}
