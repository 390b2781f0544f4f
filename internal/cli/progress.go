package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chairtools/chairstat/internal/report"
	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/venue"
)

func newProgressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Report review completion and list papers missing reviews",
		Long: `Report how many submitted reviews each active paper has and write the papers
with fewer than --required reviews, with the contacts of their senior area
chair and area chair, to a TSV file.`,
		Example: `
  chairstat progress --venue aclweb.org/ACL/ARR/2023/December
  chairstat progress --required 2 --out late.tsv
  chairstat progress --snapshot december.json --no-emails`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("no-emails") {
				noEmails, _ := cmd.Flags().GetBool("no-emails")
				a.v.Set("progress.emails", !noEmails)
			}
			return a.runProgress(cmd)
		},
	}

	flags := cmd.Flags()
	flags.Int("required", stats.DefaultRequiredReviews, "papers with fewer submitted reviews are flagged")
	flags.String("out", report.DefaultUrgentFile, "TSV file for the flagged papers")
	flags.Bool("no-emails", false, "do not look up chair emails")

	a.bind("progress.required_reviews", flags.Lookup("required"))
	a.bind("progress.output_file", flags.Lookup("out"))

	return cmd
}

func (a *app) runProgress(cmd *cobra.Command) error {
	s, err := a.newSession(cmd)
	if err != nil {
		return err
	}

	withEmails := s.cfg.Progress.Emails
	variant := []string{"emails=" + strconv.FormatBool(withEmails)}

	snap, err := s.snapshot(cmd.Context(), venue.KindProgress, variant, func(ctx context.Context, f *venue.Fetcher) (*venue.Snapshot, error) {
		return f.FetchProgress(ctx, withEmails)
	})
	if err != nil {
		return err
	}

	progress := stats.Progress(snap, stats.ProgressOptions{Required: s.cfg.Progress.RequiredReviews})

	var emails func(string) string
	if withEmails {
		emails = snap.Email
	}
	out := s.cfg.Progress.OutputFile
	if err := report.WriteFile(out, func(w io.Writer) error {
		return report.WriteUrgent(w, progress, emails)
	}); err != nil {
		return err
	}

	return a.render(cmd, progress, func(w io.Writer) {
		report.Progress(w, progress)
		if a.v.GetBool("verbose") {
			report.Flagged(w, progress)
		}
		if !a.v.GetBool("quiet") {
			report.Saved(w, "papers with missing reviews", out)
		}
	})
}
