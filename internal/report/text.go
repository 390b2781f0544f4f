package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/style"
)

// Capacity prints one block per role.
func Capacity(w io.Writer, reports []stats.CapacityReport) {
	for _, r := range reports {
		role := style.SectionStyle.Render(string(r.Role))

		fmt.Fprintf(w, "%s - Total number of members in system: %s\n", role, style.Value(r.Members))
		fmt.Fprintf(w, "%s - Number of members who set max load for this cycle: %s\n", role, style.Value(r.Declared))
		if len(r.Missing) > 0 {
			fmt.Fprintf(w, "%s\n", style.NoteStyle.Render(fmt.Sprintf("    No max load, skipping %d members", len(r.Missing))))
		}
		if r.Defaulted > 0 {
			fmt.Fprintf(w, "%s\n", style.NoteStyle.Render(fmt.Sprintf("    No max load, using the default for %d members", r.Defaulted)))
		}
		fmt.Fprintf(w, "%s - Total capacity: %s reviews\n", role, style.Value(r.Total))
		for _, b := range r.Distribution {
			fmt.Fprintf(w, "  #members who set max load to %d: %s\n", b.Load, style.Value(b.Members))
		}
		fmt.Fprintf(w, "%s - Number of active members: %s\n\n", role, style.Value(r.Active))
	}
}

// CapacityMissing lists the members without a declaration, one per line.
func CapacityMissing(w io.Writer, reports []stats.CapacityReport) {
	for _, r := range reports {
		for _, member := range r.Missing {
			fmt.Fprintf(w, "    %s %s\n", style.MutedStyle.Render(string(r.Role)+": no edge, skipping"), member)
		}
	}
}

// Progress prints the review completion summary.
func Progress(w io.Writer, r stats.ProgressReport) {
	fmt.Fprintf(w, "Number of active submissions: %s\n", style.Value(r.ActivePapers))
	fmt.Fprintf(w, "Number of submissions withdrawn/desk-rejected: %s\n\n", style.Value(r.WithdrawnPapers))

	for _, b := range r.Histogram {
		line := fmt.Sprintf("Papers with %d review: %d (%.2f%%)", b.Reviews, b.Papers, b.Percent)
		if b.Reviews < r.Required {
			line = style.FlaggedStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "#Papers with 0 or 1 reviews: %s\n", style.Value(r.FewerThan(2)))
	fmt.Fprintf(w, "#Papers with <%d reviews: %s\n", r.Required, style.Value(r.FewerThan(r.Required)))
	fmt.Fprintln(w, style.NoteStyle.Render("  (Note: Your COI papers will show up as having 0 reviews)"))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Reviews assigned: %s, submitted: %s, missing: %s\n",
		style.Value(r.AssignedReviews), style.Value(r.SubmittedReviews), style.Value(r.MissingReviews))
	if r.UnassignedReviews > 0 {
		fmt.Fprintf(w, "Reviews from unassigned reviewers: %s\n", style.Value(r.UnassignedReviews))
	}
	fmt.Fprintf(w, "Reviewers with outstanding reviews: %s\n", style.Value(len(r.Reviewers)))
}

// Flagged prints the papers below the required review count.
func Flagged(w io.Writer, r stats.ProgressReport) {
	if len(r.Flagged) == 0 {
		style.Success(w, fmt.Sprintf("Every paper has at least %d reviews", r.Required))
		return
	}

	fmt.Fprintln(w, style.TitleStyle.Render(fmt.Sprintf("Papers with <%d reviews", r.Required)))
	for _, p := range r.Flagged {
		fmt.Fprintf(w, "  %-6d %d/%d  AC %s  SAC %s\n", p.Number, p.Submitted, p.Assigned, p.AreaChair(), p.SeniorAreaChair())
	}
}

// Recommendations prints the track assignment counts and the finished and
// pending totals.
func Recommendations(w io.Writer, r stats.RecommendationReport) {
	if len(r.Chairs) > 0 {
		fmt.Fprintln(w, "=== Areas/Tracks and corresponding #assignments to SAC ===")
		for _, c := range r.Chairs {
			track := strings.TrimSuffix(string(c.Role), "_Area_Chairs")
			fmt.Fprintf(w, "%s\t%s\t#assign: %d\n", track, c.Chair, c.Papers)
		}
	}

	fmt.Fprintf(w, "#finished: %s / #not_finished: %s\n", style.Value(r.Finished), style.Value(len(r.Pending)))
	if r.SkippedCOI > 0 {
		fmt.Fprintln(w, style.NoteStyle.Render(fmt.Sprintf("  (Skipped %d COI papers)", r.SkippedCOI)))
	}
}

// Saved reports a written file.
func Saved(w io.Writer, what, path string) {
	style.Success(w, fmt.Sprintf("Saved %s to %s", what, style.FormatFilePath(path)))
}
