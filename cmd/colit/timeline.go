package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Mr-houngbo/Colit/internal/config"
	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/postgres"
)

func timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline [coli-space-id]",
		Short: "Print the timeline schema, or the timeline of one coli space",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				renderDefinitions(out)
				return nil
			}

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid coli space id: %w", err)
			}
			pool, err := postgres.NewPool(cmd.Context(), config.DatabaseURL(), postgres.PoolOptions{MaxConns: 2})
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			defer pool.Close()

			repo := postgres.NewColiSpaceRepository(pool)
			space, err := repo.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if space == nil {
				return colispace.NotFound("coli space", id)
			}
			steps, err := repo.ListSteps(cmd.Context(), id)
			if err != nil {
				return err
			}
			colispace.SortSteps(steps)
			fmt.Fprintf(out, "coli space %s (%s)\n", space.ID, space.Status)
			renderSteps(out, steps)
			return nil
		},
	}
}

func renderDefinitions(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Step", "Label", "Validated by"})
	for i, d := range colispace.Definitions() {
		t.AppendRow(table.Row{i, d.ID, d.Label, policyText(d.Policy)})
	}
	t.Render()
}

func renderSteps(w io.Writer, steps []*colispace.TimelineStep) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Step", "Label", "Done", "By", "At"})
	for _, st := range steps {
		by, at := "", ""
		if st.ValidatedBy != nil {
			by = *st.ValidatedBy
		} else if st.Completed {
			by = "auto"
		}
		if st.ValidatedAt != nil {
			at = st.ValidatedAt.Format("2006-01-02 15:04")
		}
		done := ""
		if st.Completed {
			done = "yes"
		}
		t.AppendRow(table.Row{st.Position, st.StepID, st.Label, done, by, at})
	}
	t.Render()
}

func policyText(p colispace.Policy) string {
	if p.AutoValidate {
		return "auto"
	}
	roles := make([]string, 0, len(p.CanValidate))
	for _, r := range p.CanValidate {
		roles = append(roles, string(r))
	}
	return strings.Join(roles, ", ")
}
