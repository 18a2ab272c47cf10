package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/funvibe/ilstack/internal/depthstore"
	"github.com/funvibe/ilstack/internal/report"
)

const defaultDB = "ilstack.db"

func newExportCmd(a *app) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "export [fixture|dir]...",
		Short: "Store the depth tables of each fixture in a SQLite database",
		Long: `Computes the depth tables of every method body and stores them as one
run per fixture. The run ids are printed so that runs can be loaded again
with "ilstack runs --show".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectFixtures(args)
			if err != nil {
				return err
			}
			store, err := depthstore.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			type saved struct {
				name string
				id   uuid.UUID
			}
			runs, err := forEachFixture(cmd.Context(), a, files, func(ctx context.Context, s *session) (saved, error) {
				tables, err := report.BuildAll(s.provider, s.fx.Roots())
				if err != nil {
					return saved{}, err
				}
				id, err := store.SaveRun(ctx, s.fx.Name, tables)
				if err != nil {
					return saved{}, err
				}
				a.logger.Info("run stored",
					zap.String("fixture", s.fx.Name),
					zap.Stringer("run", id),
					zap.Int("tables", len(tables)))
				return saved{s.fx.Name, id}, nil
			})
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.id, r.name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDB, "database file")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	var (
		dbPath string
		show   string
	)

	cmd := &cobra.Command{
		Use:   "runs [fixture]",
		Short: "List stored runs, or print one with --show",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := depthstore.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			out := cmd.OutOrStdout()

			if show != "" {
				id, err := uuid.Parse(show)
				if err != nil {
					return fmt.Errorf("invalid run id %q: %w", show, err)
				}
				tables, err := store.Load(cmd.Context(), id)
				if err != nil {
					return err
				}
				r := &report.Renderer{Out: out, Color: report.UseColor(a.settings.Color, asFile(out))}
				return r.RenderAll(tables)
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			runs, err := store.Runs(cmd.Context(), name)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tFIXTURE\tTABLES\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Fixture, r.Tables, r.Created.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDB, "database file")
	cmd.Flags().StringVar(&show, "show", "", "print the tables of a stored run")
	return cmd
}
