package main

import (
	"context"

	"github.com/spf13/cobra"

	"growbook/internal/app"
	"growbook/pkg/domain"
)

func (c *cli) plantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plant",
		Short: "Manage QR-tagged plants",
	}
	cmd.AddCommand(c.plantCreateCmd(), c.plantGetCmd(), c.plantListCmd(), c.plantUpdateCmd(), c.plantDeleteCmd(), c.plantScanCmd())
	return cmd
}

func (c *cli) plantCreateCmd() *cobra.Command {
	var in domain.PlantInput
	var status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a plant by its QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Status = domain.PlantStatus(status)
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				plant, err := s.Plants(nil).Create(ctx, in)
				if err != nil {
					return err
				}
				return c.renderPlants(plant, []domain.Plant{plant})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.QRCode, "qr", "", "QR code printed on the plant tag (required)")
	f.StringVar(&in.Strain, "strain", "", "strain name (required)")
	f.StringVar(&in.BirthDate, "birth-date", "", "germination date, YYYY-MM-DD (required)")
	f.StringVar(&in.GrowRoomID, "room", "", "id of the environment holding the plant (required)")
	f.StringVar(&status, "status", "", "initial stage (default seedling)")
	for _, name := range []string{"qr", "strain", "birth-date", "room"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *cli) plantGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a plant by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				plant, ok, err := s.Plants(nil).GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return domain.NotFoundError{Entity: domain.EntityPlant, ID: args[0]}
				}
				return c.renderPlants(plant, []domain.Plant{plant})
			})
		},
	}
}

func (c *cli) plantScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <qr-code>",
		Short: "Look a plant up by its QR code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				plant, ok, err := s.Plants(nil).GetByQRCode(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return domain.NotFoundError{Entity: domain.EntityPlant, ID: args[0]}
				}
				return c.renderPlants(plant, []domain.Plant{plant})
			})
		},
	}
}

func (c *cli) plantListCmd() *cobra.Command {
	var room string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your plants, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				repo := s.Plants(nil)
				var (
					plants []domain.Plant
					err    error
				)
				if room != "" {
					plants, err = repo.ListByGrowRoom(ctx, room)
				} else {
					plants, err = repo.ListByOwner(ctx)
				}
				if err != nil {
					return err
				}
				return c.renderPlants(plants, plants)
			})
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "only plants in this environment")
	return cmd
}

func (c *cli) plantUpdateCmd() *cobra.Command {
	var strain, birth, room, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a plant; the QR code cannot change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.PlantPatch
			flags := cmd.Flags()
			if flags.Changed("strain") {
				patch.Strain = domain.Set(strain)
			}
			if flags.Changed("birth-date") {
				patch.BirthDate = domain.Set(birth)
			}
			if flags.Changed("room") {
				patch.GrowRoomID = domain.Set(room)
			}
			if flags.Changed("status") {
				patch.Status = domain.Set(domain.PlantStatus(status))
			}
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				repo := s.Plants(nil)
				if err := repo.Update(ctx, args[0], patch); err != nil {
					return err
				}
				plant, ok, err := repo.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return domain.NotFoundError{Entity: domain.EntityPlant, ID: args[0]}
				}
				return c.renderPlants(plant, []domain.Plant{plant})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&strain, "strain", "", "new strain")
	f.StringVar(&birth, "birth-date", "", "new birth date, YYYY-MM-DD")
	f.StringVar(&room, "room", "", "move to another of your environments")
	f.StringVar(&status, "status", "", "new stage")
	return cmd
}

func (c *cli) plantDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a plant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				if err := s.Plants(nil).Delete(ctx, args[0]); err != nil {
					return err
				}
				c.printf("deleted plant %s\n", args[0])
				return nil
			})
		},
	}
}

// renderPlants prints v (one record or a list) with rows as the table form.
func (c *cli) renderPlants(v any, plants []domain.Plant) error {
	return c.render(v, func(t *tableWriter) {
		t.row("ID", "QR", "STRAIN", "BORN", "ROOM", "STATUS", "CREATED")
		for _, p := range plants {
			t.row(p.ID, p.QRCode, p.Strain, p.BirthDate, p.GrowRoomID, string(p.Status), orDash(p.CreatedAt))
		}
	})
}
