package report_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chairtools/chairstat/internal/report"
	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/testhelper"
	"github.com/chairtools/chairstat/internal/venue"
)

func TestMain(m *testing.M) {
	testhelper.Main(m)
}

func progressReport() stats.ProgressReport {
	return stats.ProgressReport{
		Required:        3,
		ActivePapers:    4,
		WithdrawnPapers: 1,
		Histogram: []stats.ReviewBucket{
			{Reviews: 0, Papers: 1, Percent: 25},
			{Reviews: 2, Papers: 1, Percent: 25},
			{Reviews: 3, Papers: 2, Percent: 50},
		},
		Flagged: []stats.PaperProgress{
			{Number: 4, SeniorAreaChairs: []string{"~Sac1"}, AreaChairs: []string{"~Ac1"}, Assigned: 3, Submitted: 2, Missing: 1},
			{Number: 7, Assigned: 2, Submitted: 0, Missing: 2},
		},
		AssignedReviews:  11,
		SubmittedReviews: 8,
		MissingReviews:   3,
		Reviewers:        []stats.MemberProgress{{ID: "~R1", Assigned: 2, Outstanding: 2}},
	}
}

func TestCapacityText(t *testing.T) {
	var out bytes.Buffer
	report.Capacity(&out, []stats.CapacityReport{
		{
			Role:     venue.RoleReviewers,
			Members:  4,
			Declared: 3,
			Missing:  []string{"~D1"},
			Total:    15,
			Active:   3,
			Distribution: []stats.LoadBucket{
				{Load: 4, Members: 1},
				{Load: 5, Members: 1},
				{Load: 6, Members: 1},
			},
		},
	})

	text := testhelper.StripANSI(out.String())
	assert.Contains(t, text, "Reviewers - Total capacity: 15 reviews")
	assert.Contains(t, text, "  #members who set max load to 6: 1")
	snaps.MatchSnapshot(t, text)
}

func TestProgressText(t *testing.T) {
	var out bytes.Buffer
	r := progressReport()
	report.Progress(&out, r)
	report.Flagged(&out, r)

	text := testhelper.StripANSI(out.String())
	assert.Contains(t, text, "Papers with 0 review: 1 (25.00%)")
	assert.Contains(t, text, "#Papers with <3 reviews: 2")
	snaps.MatchSnapshot(t, text)
}

func TestFlaggedTextNone(t *testing.T) {
	var out bytes.Buffer
	report.Flagged(&out, stats.ProgressReport{Required: 3, Flagged: []stats.PaperProgress{}})

	assert.Contains(t, testhelper.StripANSI(out.String()), "Every paper has at least 3 reviews")
}

func TestWriteUrgent(t *testing.T) {
	emails := map[string]string{"~Sac1": "sac@example.org"}
	lookup := func(id string) string {
		if e, ok := emails[id]; ok {
			return e
		}
		return venue.Unknown
	}

	var out bytes.Buffer
	require.NoError(t, report.WriteUrgent(&out, progressReport(), lookup))

	assert.Equal(t, strings.Join([]string{
		"SubmissionID\tSAC\tSAC_email\tAC\tAC_email\tAssigned\tSubmitted\tMissing",
		"4\t~Sac1\tsac@example.org\t~Ac1\tUNKNOWN\t3\t2\t1",
		"7\tUNKNOWN\tUNKNOWN\tUNKNOWN\tUNKNOWN\t2\t0\t2",
		"",
	}, "\n"), out.String())
}

func TestWriteUrgentWithoutEmails(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, report.WriteUrgent(&out, progressReport(), nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "4\t~Sac1\tUNKNOWN\t~Ac1\tUNKNOWN\t3\t2\t1", lines[1])
}

func TestWriteRecommendations(t *testing.T) {
	var out bytes.Buffer
	err := report.WriteRecommendations(&out, stats.RecommendationReport{
		Rows: []stats.RecommendationRow{{
			PaperID:            12,
			SAC:                "~Amy1",
			SACEmail:           "amy@example.org",
			Area:               "Dialogue",
			Title:              "A\ttitle",
			Recommendation:     "Accept",
			MetaReview:         "line one\nline two\r\nline three",
			Award:              "No",
			AwardJustification: "",
		}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(report.RecommendationHeader, "\t"), lines[0])
	assert.Equal(t, "12\t~Amy1\tamy@example.org\tDialogue\tA title\tAccept\tline one line two line three\tNo\t", lines[1])
	assert.Len(t, strings.Split(lines[1], "\t"), len(report.RecommendationHeader))
}

func TestRecommendationsText(t *testing.T) {
	var out bytes.Buffer
	report.Recommendations(&out, stats.RecommendationReport{
		Finished:   2,
		Pending:    []int{3},
		SkippedCOI: 1,
		Chairs: []stats.ChairLoad{
			{Role: venue.TrackRole("Dialogue"), Chair: "~Amy1", Papers: 2},
		},
	})

	text := testhelper.StripANSI(out.String())
	assert.Contains(t, text, "Dialogue\t~Amy1\t#assign: 2")
	assert.Contains(t, text, "#finished: 2 / #not_finished: 1")
	assert.Contains(t, text, "Skipped 1 COI papers")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tsv")

	require.NoError(t, report.WriteFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("a\tb\n"))
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n", string(data))

	boom := errors.New("boom")
	err = report.WriteFile(path, func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = report.WriteFile(filepath.Join(t.TempDir(), "missing", "out.tsv"), func(io.Writer) error { return nil })
	assert.ErrorContains(t, err, "failed to create")
}
