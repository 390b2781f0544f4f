package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/chairtools/chairstat/internal/report"
	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/venue"
)

func newCapacityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Report the reviewing capacity of each role",
		Long: `Report how many reviews each role can take on, from the maximum loads its
members declared for this cycle.

Members without a declaration are skipped, or counted at --default-load with
--missing-load default.`,
		Example: `
  chairstat capacity --venue aclweb.org/ACL/ARR/2023/December
  chairstat capacity --role Reviewers --missing-load default --default-load 4
  chairstat capacity --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.override(cmd, "role", "capacity.roles")
			return a.runCapacity(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("role", nil, "role group to report, repeatable (default Area_Chairs,Reviewers)")
	flags.String("missing-load", string(stats.MissingLoadSkip), "members without a max load: skip or default")
	flags.Int("default-load", 0, "load assumed for members without one, with --missing-load default")

	a.bind("capacity.missing_load", flags.Lookup("missing-load"))
	a.bind("capacity.default_load", flags.Lookup("default-load"))

	return cmd
}

func (a *app) runCapacity(cmd *cobra.Command) error {
	s, err := a.newSession(cmd)
	if err != nil {
		return err
	}

	roles := s.cfg.Roles()
	variant := make([]string, len(roles))
	for i, r := range roles {
		variant[i] = string(r)
	}

	snap, err := s.snapshot(cmd.Context(), venue.KindCapacity, variant, func(ctx context.Context, f *venue.Fetcher) (*venue.Snapshot, error) {
		return f.FetchCapacity(ctx, roles)
	})
	if err != nil {
		return err
	}

	reports := stats.CapacityAll(snap, roles, s.cfg.CapacityPolicy())

	return a.render(cmd, reports, func(w io.Writer) {
		if a.v.GetBool("verbose") {
			report.CapacityMissing(w, reports)
		}
		report.Capacity(w, reports)
	})
}
