package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/venue"
)

const (
	DefaultUrgentFile         = "urgent_papers.tsv"
	DefaultRecommendationFile = "sac_recommendation.tsv"
)

var (
	UrgentHeader = []string{
		"SubmissionID", "SAC", "SAC_email", "AC", "AC_email", "Assigned", "Submitted", "Missing",
	}
	RecommendationHeader = []string{
		"PaperID", "SAC_name", "SAC_email", "Area", "Title",
		"SAC_recommendation", "SAC_metareview", "SAC_award_suggestion", "SAC_award_justification",
	}
)

var fieldCleaner = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// cleanField keeps a free-text value on one TSV cell.
func cleanField(s string) string {
	return fieldCleaner.Replace(s)
}

type tsvWriter struct {
	w   *bufio.Writer
	err error
}

func (t *tsvWriter) row(fields ...string) {
	if t.err != nil {
		return
	}
	cells := make([]string, len(fields))
	for i, f := range fields {
		cells[i] = cleanField(f)
	}
	_, t.err = t.w.WriteString(strings.Join(cells, "\t") + "\n")
}

func (t *tsvWriter) flush() error {
	if t.err != nil {
		return t.err
	}
	return t.w.Flush()
}

// WriteUrgent writes one row per flagged paper with the contacts of its
// senior area chair and area chair.
func WriteUrgent(w io.Writer, r stats.ProgressReport, emails func(id string) string) error {
	t := &tsvWriter{w: bufio.NewWriter(w)}
	t.row(UrgentHeader...)

	for _, p := range r.Flagged {
		sac, ac := p.SeniorAreaChair(), p.AreaChair()
		t.row(
			strconv.Itoa(p.Number),
			sac, contact(emails, sac),
			ac, contact(emails, ac),
			strconv.Itoa(p.Assigned),
			strconv.Itoa(p.Submitted),
			strconv.Itoa(p.Missing),
		)
	}
	return t.flush()
}

func contact(emails func(string) string, id string) string {
	if emails == nil || id == venue.Unknown {
		return venue.Unknown
	}
	return emails(id)
}

// WriteRecommendations writes one row per finished recommendation.
func WriteRecommendations(w io.Writer, r stats.RecommendationReport) error {
	t := &tsvWriter{w: bufio.NewWriter(w)}
	t.row(RecommendationHeader...)

	for _, row := range r.Rows {
		t.row(
			strconv.Itoa(row.PaperID),
			row.SAC,
			row.SACEmail,
			row.Area,
			row.Title,
			row.Recommendation,
			row.MetaReview,
			row.Award,
			row.AwardJustification,
		)
	}
	return t.flush()
}

// WriteFile creates path and writes to it with fn.
func WriteFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
