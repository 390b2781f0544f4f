package cli

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chairtools/chairstat/internal/report"
	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/venue"
)

func newRecommendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Collect senior area chair recommendations",
		Long: `Collect the senior area chair meta reviews of a commitment venue and write
the finished recommendations to a TSV file.

Each --track reads the assignments of the <track>_Area_Chairs group. Without
--track the Area_Chairs group is used.`,
		Example: `
  chairstat recommend --venue aclweb.org/NAACL/2024/Conference
  chairstat recommend --track Machine_Translation --track Dialogue --coi 1234`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.override(cmd, "track", "recommend.tracks")
			a.override(cmd, "coi", "recommend.coi_papers")
			return a.runRecommend(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("track", nil, "track whose area chair assignments are read, repeatable")
	flags.IntSlice("coi", nil, "paper number to leave out, repeatable")
	flags.String("out", report.DefaultRecommendationFile, "TSV file for the recommendations")

	a.bind("recommend.output_file", flags.Lookup("out"))

	return cmd
}

func (a *app) runRecommend(cmd *cobra.Command) error {
	s, err := a.newSession(cmd)
	if err != nil {
		return err
	}

	tracks := s.cfg.Recommend.Tracks
	variant := []string{"tracks=" + strings.Join(tracks, ",")}

	snap, err := s.snapshot(cmd.Context(), venue.KindRecommend, variant, func(ctx context.Context, f *venue.Fetcher) (*venue.Snapshot, error) {
		return f.FetchRecommend(ctx, tracks)
	})
	if err != nil {
		return err
	}

	recommendations := stats.Recommendations(snap, stats.RecommendationOptions{COIPapers: s.cfg.Recommend.COIPapers})

	out := s.cfg.Recommend.OutputFile
	if err := report.WriteFile(out, func(w io.Writer) error {
		return report.WriteRecommendations(w, recommendations)
	}); err != nil {
		return err
	}

	return a.render(cmd, recommendations, func(w io.Writer) {
		report.Recommendations(w, recommendations)
		if !a.v.GetBool("quiet") {
			report.Saved(w, "recommendations", out)
		}
	})
}
