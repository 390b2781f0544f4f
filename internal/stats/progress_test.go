package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/venue"
)

func assign(paper, person string, role venue.Role) venue.Assignment {
	return venue.Assignment{PaperID: paper, PersonID: person, Role: role}
}

func progressSnapshot() *venue.Snapshot {
	return &venue.Snapshot{
		Kind: venue.KindProgress,
		Submissions: []venue.Submission{
			{Number: 2, ID: "p2", OriginalID: "o2", Title: "Two"},
			{Number: 1, ID: "p1", OriginalID: "o1", Title: "One"},
			{Number: 3, ID: "p3", Title: "Three"},
			{Number: 4, ID: "p4", Title: "Gone", Withdrawn: true},
		},
		Assignments: []venue.Assignment{
			assign("p1", "~SAC1", venue.RoleSeniorAreaChairs),
			assign("p1", "~AC2", venue.RoleAreaChairs),
			assign("p1", "~AC1", venue.RoleAreaChairs),
			assign("p1", "~R1", venue.RoleReviewers),
			assign("p1", "~R2", venue.RoleReviewers),
			assign("p1", "~R3", venue.RoleReviewers),

			assign("o2", "~R1", venue.RoleReviewers),
			assign("o2", "~R2", venue.RoleReviewers),
			assign("o2", "~R3", venue.RoleReviewers),

			assign("p3", "~R4", venue.RoleReviewers),
			assign("p4", "~R4", venue.RoleReviewers),
			assign("unknown", "~R5", venue.RoleReviewers),
		},
		Completed: map[int][]string{
			1: {"~R1", "~R2"},
			2: {"~R1", "~R2", "~R3", "~Emergency1"},
			4: {"~R4"},
		},
	}
}

func TestProgress_FlagsBelowRequired(t *testing.T) {
	report := stats.Progress(progressSnapshot(), stats.ProgressOptions{Required: 3})

	assert.Equal(t, 3, report.ActivePapers)
	assert.Equal(t, 1, report.WithdrawnPapers)
	require.Len(t, report.Papers, 3)

	one := report.Papers[0]
	assert.Equal(t, 1, one.Number)
	assert.Equal(t, 3, one.Assigned)
	assert.Equal(t, 2, one.Submitted)
	assert.Equal(t, 1, one.Missing)
	assert.Equal(t, []string{"~AC1", "~AC2"}, one.AreaChairs)
	assert.Equal(t, "~AC1", one.AreaChair())
	assert.Equal(t, "~SAC1", one.SeniorAreaChair())

	two := report.Papers[1]
	assert.Equal(t, 3, two.Submitted, "edges on the original id resolve")
	assert.Equal(t, 0, two.Missing)
	assert.Equal(t, 1, two.Unassigned)

	three := report.Papers[2]
	assert.Equal(t, venue.Unknown, three.SeniorAreaChair())
	assert.Equal(t, venue.Unknown, three.AreaChair())

	require.Len(t, report.Flagged, 2)
	assert.Equal(t, 1, report.Flagged[0].Number)
	assert.Equal(t, 3, report.Flagged[1].Number)
	for _, p := range report.Flagged {
		assert.NotEqual(t, 2, p.Number, "a paper at the threshold is not flagged")
	}
}

func TestProgress_ExactlyAtThreshold(t *testing.T) {
	snap := progressSnapshot()

	report := stats.Progress(snap, stats.ProgressOptions{Required: 2})
	numbers := []int{}
	for _, p := range report.Flagged {
		numbers = append(numbers, p.Number)
	}
	assert.Equal(t, []int{3}, numbers)
}

func TestProgress_Totals(t *testing.T) {
	report := stats.Progress(progressSnapshot(), stats.ProgressOptions{})

	assert.Equal(t, stats.DefaultRequiredReviews, report.Required)
	assert.Equal(t, 7, report.AssignedReviews)
	assert.Equal(t, 5, report.SubmittedReviews)
	assert.Equal(t, 2, report.MissingReviews)
	assert.Equal(t, 1, report.UnassignedReviews)

	require.Len(t, report.Histogram, 3)
	assert.Equal(t, 0, report.Histogram[0].Reviews)
	assert.Equal(t, 1, report.Histogram[0].Papers)
	assert.InDelta(t, 33.33, report.Histogram[0].Percent, 0.01)
	assert.Equal(t, 2, report.Histogram[1].Reviews)
	assert.Equal(t, 3, report.Histogram[2].Reviews)

	assert.Equal(t, 1, report.FewerThan(2))
	assert.Equal(t, 2, report.FewerThan(3))

	assert.Equal(t, []stats.MemberProgress{
		{ID: "~R3", Assigned: 2, Completed: 1, Outstanding: 1},
		{ID: "~R4", Assigned: 1, Completed: 0, Outstanding: 1},
	}, report.Reviewers)
}

func TestProgress_Idempotent(t *testing.T) {
	snap := progressSnapshot()
	opts := stats.ProgressOptions{Required: 3}

	assert.Equal(t, stats.Progress(snap, opts), stats.Progress(snap, opts))
}

func TestProgress_NoPapers(t *testing.T) {
	report := stats.Progress(&venue.Snapshot{}, stats.ProgressOptions{})

	assert.Zero(t, report.ActivePapers)
	assert.Empty(t, report.Histogram)
	assert.Empty(t, report.Flagged)
	assert.NotNil(t, report.Flagged)
}
