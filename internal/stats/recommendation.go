package stats

import (
	"sort"

	"github.com/chairtools/chairstat/internal/venue"
)

type RecommendationOptions struct {
	// COIPapers are paper numbers left out of the report.
	COIPapers []int
}

// RecommendationRow is one finished senior area chair recommendation.
type RecommendationRow struct {
	PaperID            int    `json:"paper_id" yaml:"paper_id"`
	SAC                string `json:"sac" yaml:"sac"`
	SACEmail           string `json:"sac_email" yaml:"sac_email"`
	Area               string `json:"area" yaml:"area"`
	Title              string `json:"title" yaml:"title"`
	Recommendation     string `json:"recommendation" yaml:"recommendation"`
	MetaReview         string `json:"metareview" yaml:"metareview"`
	Award              string `json:"award" yaml:"award"`
	AwardJustification string `json:"award_justification" yaml:"award_justification"`
}

// ChairLoad counts the papers assigned to one chair of a track.
type ChairLoad struct {
	Role   venue.Role `json:"role" yaml:"role"`
	Chair  string     `json:"chair" yaml:"chair"`
	Papers int        `json:"papers" yaml:"papers"`
}

type RecommendationReport struct {
	Rows       []RecommendationRow `json:"rows" yaml:"rows"`
	Finished   int                 `json:"finished" yaml:"finished"`
	Pending    []int               `json:"pending" yaml:"pending"`
	SkippedCOI int                 `json:"skipped_coi" yaml:"skipped_coi"`
	Chairs     []ChairLoad         `json:"chairs" yaml:"chairs"`
}

// Recommendations builds one row per submission with a senior area chair
// meta review. Submissions without one are pending.
func Recommendations(snap *venue.Snapshot, opts RecommendationOptions) RecommendationReport {
	report := RecommendationReport{
		Rows:    []RecommendationRow{},
		Pending: []int{},
		Chairs:  []ChairLoad{},
	}

	coi := make(map[int]bool, len(opts.COIPapers))
	for _, n := range opts.COIPapers {
		coi[n] = true
	}

	numbers := snap.PaperNumbers()
	chairs := make(map[int]map[string]bool)
	loads := make(map[venue.Role]map[string]int)
	for _, a := range snap.Assignments {
		if loads[a.Role] == nil {
			loads[a.Role] = make(map[string]int)
		}
		loads[a.Role][a.PersonID]++

		n, ok := numbers[a.PaperID]
		if !ok {
			continue
		}
		if chairs[n] == nil {
			chairs[n] = make(map[string]bool)
		}
		chairs[n][a.PersonID] = true
	}

	submissions := append([]venue.Submission(nil), snap.Submissions...)
	sort.Slice(submissions, func(i, j int) bool { return submissions[i].Number < submissions[j].Number })

	for _, sub := range submissions {
		if coi[sub.Number] {
			report.SkippedCOI++
			continue
		}
		if sub.MetaReview == nil {
			report.Pending = append(report.Pending, sub.Number)
			continue
		}

		sac := first(sortedKeys(chairs[sub.Number]))
		area := sub.Track
		if area == "" {
			area = sub.ResearchArea
		}

		report.Rows = append(report.Rows, RecommendationRow{
			PaperID:            sub.Number,
			SAC:                sac,
			SACEmail:           snap.Email(sac),
			Area:               area,
			Title:              sub.Title,
			Recommendation:     sub.MetaReview.Recommendation,
			MetaReview:         sub.MetaReview.Text,
			Award:              sub.MetaReview.Award,
			AwardJustification: sub.MetaReview.AwardJustification,
		})
	}
	report.Finished = len(report.Rows)

	for role, byChair := range loads {
		for chair, n := range byChair {
			report.Chairs = append(report.Chairs, ChairLoad{Role: role, Chair: chair, Papers: n})
		}
	}
	sort.Slice(report.Chairs, func(i, j int) bool {
		a, b := report.Chairs[i], report.Chairs[j]
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		return a.Chair < b.Chair
	})

	return report
}
