package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/chairtools/chairstat/internal/snapshot"
	"github.com/chairtools/chairstat/internal/testhelper"
	"github.com/chairtools/chairstat/internal/venue"
)

func seedCapacity(p *testhelper.Platform) {
	p.Groups[venueID+"/Reviewers"] = []string{"~Rev_A1", "~Rev_B1", "~Rev_C1", "~Rev_D1"}
	p.Edges[venueID+"/Reviewers/-/Custom_Max_Papers"] = []testhelper.Edge{
		{Head: venueID + "/Reviewers", Tail: "~Rev_A1", Weight: 6},
		{Head: venueID + "/Reviewers", Tail: "~Rev_B1", Weight: 4},
		{Head: venueID + "/Reviewers", Tail: "~Rev_C1", Weight: 5},
	}
	p.Groups[venueID+"/Area_Chairs"] = []string{"~AC_One1", "~AC_Two1"}
	p.Edges[venueID+"/Area_Chairs/-/Custom_Max_Papers"] = []testhelper.Edge{
		{Head: venueID + "/Area_Chairs", Tail: "~AC_One1", Weight: 10},
		{Head: venueID + "/Area_Chairs", Tail: "~AC_Two1", Weight: 5},
	}
}

func seedProgress(p *testhelper.Platform) {
	p.Notes[venueID+"/-/Blind_Submission"] = []map[string]any{
		{"id": "blind1", "number": 1, "original": "orig1", "content": map[string]any{"title": "Paper One"}},
		{"id": "blind2", "number": 2, "original": "orig2", "content": map[string]any{"title": "Paper Two"}},
	}
	p.Notes[venueID+"/-/Submission"] = []map[string]any{
		{"id": "orig1", "number": 1, "content": map[string]any{"title": "Paper One"}},
		{"id": "orig2", "number": 2, "content": map[string]any{"title": "Paper Two"}},
		{"id": "orig3", "number": 3, "content": map[string]any{"title": "Withdrawn Paper"}},
	}

	p.Edges[venueID+"/Senior_Area_Chairs/-/Assignment"] = []testhelper.Edge{
		{Head: "blind1", Tail: "~Senior_Chair1"},
		{Head: "blind2", Tail: "~Senior_Chair1"},
	}
	p.Edges[venueID+"/Area_Chairs/-/Assignment"] = []testhelper.Edge{
		{Head: "blind1", Tail: "~Area_Chair1"},
		{Head: "blind2", Tail: "~Area_Chair2"},
	}
	p.Edges[venueID+"/Reviewers/-/Assignment"] = []testhelper.Edge{
		{Head: "blind1", Tail: "~Rev_A1"},
		{Head: "blind1", Tail: "~Rev_B1"},
		{Head: "blind1", Tail: "~Rev_C1"},
		{Head: "blind2", Tail: "~Rev_A1"},
	}

	p.Groups[venueID+"/Paper1/Reviewers/Submitted"] = []string{
		venueID + "/Paper1/Reviewer_abc",
		venueID + "/Paper1/Reviewer_def",
	}
	p.Groups[venueID+"/Paper1/Reviewer_abc"] = []string{"~Rev_A1"}
	p.Groups[venueID+"/Paper1/Reviewer_def"] = []string{"~Rev_B1"}

	p.Profiles["~Senior_Chair1"] = testhelper.Profile{PreferredEmail: "sac@example.org"}
	p.Profiles["~Area_Chair1"] = testhelper.Profile{EmailsConfirmed: []string{"ac1@example.org"}}
}

func seedRecommend(p *testhelper.Platform) {
	p.Notes[venueID+"/-/Submission"] = []map[string]any{
		{
			"id":     "c2",
			"number": 2,
			"content": map[string]any{
				"title": map[string]any{"value": "Commitment Two"},
				"track": map[string]any{"value": "Dialogue"},
			},
			"details": map[string]any{"directReplies": []map[string]any{
				{
					"invitations": []string{venueID + "/Submission2/-/Meta_Review"},
					"signatures":  []string{venueID + "/Submission2/Dialogue_Area_Chair_Q"},
					"content": map[string]any{
						"recommendation": map[string]any{"value": "Accept"},
						"metareview":     map[string]any{"value": "Solid\tpaper\nwith care."},
						"award":          map[string]any{"value": "No"},
					},
				},
			}},
		},
		{"id": "c1", "number": 1, "content": map[string]any{"title": map[string]any{"value": "Commitment One"}}},
		{"id": "c3", "number": 3, "content": map[string]any{"title": map[string]any{"value": "Commitment Three"}}},
	}
	p.Groups[venueID+"/Dialogue_Area_Chairs"] = []string{"~Dialogue_SAC1"}
	p.Edges[venueID+"/Dialogue_Area_Chairs/-/Assignment"] = []testhelper.Edge{
		{Head: "c2", Tail: "~Dialogue_SAC1"},
		{Head: "c3", Tail: "~Dialogue_SAC1"},
	}
	p.Profiles["~Dialogue_SAC1"] = testhelper.Profile{Emails: []string{"dsac@example.org"}}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestCapacityCommand(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	connect(t, p)
	seedCapacity(p)

	stdout, stderr, err := executeCommand("", "capacity")
	require.NoError(t, err)

	out := testhelper.StripANSI(stdout)
	assert.Contains(t, out, "Area_Chairs - Total capacity: 15 reviews")
	assert.Contains(t, out, "Reviewers - Total capacity: 15 reviews")
	assert.Contains(t, out, "Reviewers - Number of members who set max load for this cycle: 3")
	assert.Contains(t, out, "  #members who set max load to 6: 1")
	assert.Less(t, strings.Index(out, "Area_Chairs"), strings.Index(out, "Reviewers -"))

	assert.Contains(t, stderr, "Reading Reviewers max loads")
	assert.Contains(t, stderr, "[SPINNER STOP]")
}

func TestCapacityCommand_DefaultLoadJSON(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	connect(t, p)
	seedCapacity(p)

	stdout, stderr, err := executeCommand("",
		"capacity", "--role", "Reviewers", "--missing-load", "default", "--default-load", "2", "--output", "json")
	require.NoError(t, err)

	assert.Equal(t, int64(1), gjson.Get(stdout, "#").Int())
	assert.Equal(t, "Reviewers", gjson.Get(stdout, "0.role").String())
	assert.Equal(t, int64(17), gjson.Get(stdout, "0.total").Int())
	assert.Equal(t, int64(1), gjson.Get(stdout, "0.defaulted").Int())
	assert.NotContains(t, stderr, "[SPINNER START]", "no spinner for structured output")
	assert.Equal(t, 0, p.RequestCount("/login"))
}

func TestCapacityCommand_UnknownMissingLoadPolicy(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	connect(t, p)

	_, _, err := executeCommand("", "capacity", "--missing-load", "guess")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown missing load policy "guess"`)
	assert.Empty(t, p.Requests())
}

func TestCapacityCommand_WrongVenue(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	connect(t, p)

	_, _, err := executeCommand("", "capacity", "--venue", "example.org/Nowhere/2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Area_Chairs group")
}

func TestCapacityCommand_PromptsForCredentials(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	t.Setenv("CHAIRSTAT_BASE_URL", p.URL())
	seedCapacity(p)

	stdin := p.Username + "\n" + p.Password + "\n" + venueID + "/\n"
	stdout, stderr, err := executeCommand(stdin, "capacity", "--role", "Reviewers")
	require.NoError(t, err)

	userAt := strings.Index(stderr, "Enter OpenReview username: ")
	passwordAt := strings.Index(stderr, "Enter password: ")
	venueAt := strings.Index(stderr, "Enter venue, e.g., aclweb.org/ACL/ARR/2023/December : ")
	require.GreaterOrEqual(t, userAt, 0)
	assert.Less(t, userAt, passwordAt)
	assert.Less(t, passwordAt, venueAt)

	assert.Equal(t, 1, p.RequestCount("/login"))
	assert.Contains(t, testhelper.StripANSI(stdout), "Reviewers - Total capacity: 15 reviews")
}

func TestCapacityCommand_BadPassword(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	t.Setenv("CHAIRSTAT_BASE_URL", p.URL())
	t.Setenv("CHAIRSTAT_USERNAME", p.Username)
	t.Setenv("CHAIRSTAT_PASSWORD", "wrong")
	t.Setenv("CHAIRSTAT_VENUE", venueID)

	_, stderr, err := executeCommand("", "capacity")
	require.Error(t, err)
	assert.NotContains(t, stderr, "Enter ")
	assert.Equal(t, 1, p.RequestCount("/login"))
	assert.Zero(t, p.RequestCount("/groups"))
}

func TestProgressCommand(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	connect(t, p)
	seedProgress(p)

	out := filepath.Join(t.TempDir(), "urgent.tsv")
	stdout, _, err := executeCommand("", "progress", "--out", out)
	require.NoError(t, err)

	text := testhelper.StripANSI(stdout)
	assert.Contains(t, text, "Number of active submissions: 2")
	assert.Contains(t, text, "Number of submissions withdrawn/desk-rejected: 1")
	assert.Contains(t, text, "Papers with 0 review: 1 (50.00%)")
	assert.Contains(t, text, "Papers with 2 review: 1 (50.00%)")
	assert.Contains(t, text, "#Papers with <3 reviews: 2")
	assert.Contains(t, text, "urgent.tsv")

	assert.Equal(t, []string{
		"SubmissionID\tSAC\tSAC_email\tAC\tAC_email\tAssigned\tSubmitted\tMissing",
		"1\t~Senior_Chair1\tsac@example.org\t~Area_Chair1\tac1@example.org\t3\t2\t1",
		"2\t~Senior_Chair1\tsac@example.org\t~Area_Chair2\tUNKNOWN\t1\t0\t1",
	}, readLines(t, out))
}

func TestProgressCommand_RequiredAndNoEmails(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	connect(t, p)
	seedProgress(p)

	out := filepath.Join(t.TempDir(), "urgent.tsv")
	stdout, _, err := executeCommand("", "progress", "--required", "2", "--no-emails", "--out", out, "--output", "json")
	require.NoError(t, err)

	assert.Equal(t, int64(2), gjson.Get(stdout, "required").Int())
	assert.Equal(t, int64(1), gjson.Get(stdout, "flagged.#").Int())
	assert.Equal(t, int64(2), gjson.Get(stdout, "flagged.0.number").Int())
	assert.Zero(t, p.RequestCount("/profiles"))

	assert.Equal(t, []string{
		"SubmissionID\tSAC\tSAC_email\tAC\tAC_email\tAssigned\tSubmitted\tMissing",
		"2\t~Senior_Chair1\tUNKNOWN\t~Area_Chair2\tUNKNOWN\t1\t0\t1",
	}, readLines(t, out))
}

func TestProgressCommand_SavedSnapshot(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	connect(t, p)
	seedProgress(p)

	dir := t.TempDir()
	snap := filepath.Join(dir, "progress.json")
	_, stderr, err := executeCommand("", "progress", "--save-snapshot", snap, "--out", filepath.Join(dir, "a.tsv"))
	require.NoError(t, err)
	assert.Contains(t, testhelper.StripANSI(stderr), "Saved snapshot to")
	fetched := len(p.Requests())

	_, _, err = executeCommand("", "progress", "--snapshot", snap, "--out", filepath.Join(dir, "b.tsv"))
	require.NoError(t, err)
	assert.Len(t, p.Requests(), fetched, "a saved snapshot is read without requests")
	assert.Equal(t, readLines(t, filepath.Join(dir, "a.tsv")), readLines(t, filepath.Join(dir, "b.tsv")))

	_, _, err = executeCommand("", "capacity", "--snapshot", snap)
	var mismatch *snapshot.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, venue.KindProgress, mismatch.Got)

	_, stderr, err = executeCommand("", "progress", "--snapshot", snap, "--venue", "other/venue", "--out", filepath.Join(dir, "c.tsv"))
	require.NoError(t, err)
	assert.Contains(t, testhelper.StripANSI(stderr), "was fetched for "+venueID+", not other/venue")
}

func TestProgressCommand_Cache(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	connect(t, p)
	seedProgress(p)
	t.Setenv("CHAIRSTAT_CACHE_ENABLED", "true")
	t.Setenv("CHAIRSTAT_CACHE_DIR", t.TempDir())

	dir := t.TempDir()
	_, _, err := executeCommand("", "progress", "--out", filepath.Join(dir, "a.tsv"))
	require.NoError(t, err)
	fetched := len(p.Requests())

	_, _, err = executeCommand("", "progress", "--out", filepath.Join(dir, "b.tsv"))
	require.NoError(t, err)
	assert.Len(t, p.Requests(), fetched, "second run is served from the cache")

	_, _, err = executeCommand("", "progress", "--no-cache", "--out", filepath.Join(dir, "c.tsv"))
	require.NoError(t, err)
	assert.Greater(t, len(p.Requests()), fetched)
}

func TestRecommendCommand(t *testing.T) {
	isolate(t)
	p := testhelper.NewPlatform()
	t.Cleanup(p.Close)
	connect(t, p)
	seedRecommend(p)

	out := filepath.Join(t.TempDir(), "sac.tsv")
	stdout, _, err := executeCommand("", "recommend", "--track", "Dialogue", "--coi", "3", "--out", out)
	require.NoError(t, err)

	text := testhelper.StripANSI(stdout)
	assert.Contains(t, text, "=== Areas/Tracks and corresponding #assignments to SAC ===")
	assert.Contains(t, text, "Dialogue\t~Dialogue_SAC1\t#assign: 2")
	assert.Contains(t, text, "#finished: 1 / #not_finished: 1")
	assert.Contains(t, text, "Skipped 1 COI papers")

	assert.Equal(t, []string{
		"PaperID\tSAC_name\tSAC_email\tArea\tTitle\tSAC_recommendation\tSAC_metareview\tSAC_award_suggestion\tSAC_award_justification",
		"2\t~Dialogue_SAC1\tdsac@example.org\tDialogue\tCommitment Two\tAccept\tSolid paper with care.\tNo\t",
	}, readLines(t, out))
}
