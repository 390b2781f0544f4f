package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/venue"
)

func TestRecommendations(t *testing.T) {
	dialogue := venue.TrackRole("Dialogue")
	snap := &venue.Snapshot{
		Kind: venue.KindRecommend,
		Submissions: []venue.Submission{
			{
				Number: 5, ID: "c5", Title: "Five", Track: "Dialogue",
				MetaReview: &venue.MetaReview{Recommendation: "Findings", Text: "ok"},
			},
			{
				Number: 1, ID: "c1", Title: "One", ResearchArea: "Syntax",
				MetaReview: &venue.MetaReview{Recommendation: "Accept", Text: "good", Award: "Yes", AwardJustification: "novel"},
			},
			{Number: 2, ID: "c2", Title: "Pending"},
			{Number: 9, ID: "c9", Title: "Conflict", MetaReview: &venue.MetaReview{}},
		},
		Assignments: []venue.Assignment{
			{PaperID: "c5", PersonID: "~Zed1", Role: dialogue},
			{PaperID: "c5", PersonID: "~Amy1", Role: dialogue},
			{PaperID: "c2", PersonID: "~Amy1", Role: dialogue},
		},
		Emails: map[string]string{"~Amy1": "amy@example.org"},
	}

	report := stats.Recommendations(snap, stats.RecommendationOptions{COIPapers: []int{9}})

	assert.Equal(t, 2, report.Finished)
	assert.Equal(t, []int{2}, report.Pending)
	assert.Equal(t, 1, report.SkippedCOI)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, stats.RecommendationRow{
		PaperID:            1,
		SAC:                venue.Unknown,
		SACEmail:           venue.Unknown,
		Area:               "Syntax",
		Title:              "One",
		Recommendation:     "Accept",
		MetaReview:         "good",
		Award:              "Yes",
		AwardJustification: "novel",
	}, report.Rows[0])

	five := report.Rows[1]
	assert.Equal(t, "~Amy1", five.SAC)
	assert.Equal(t, "amy@example.org", five.SACEmail)
	assert.Equal(t, "Dialogue", five.Area)

	assert.Equal(t, []stats.ChairLoad{
		{Role: dialogue, Chair: "~Amy1", Papers: 2},
		{Role: dialogue, Chair: "~Zed1", Papers: 1},
	}, report.Chairs)
}
