package stats

import (
	"sort"

	"github.com/chairtools/chairstat/internal/venue"
)

// DefaultRequiredReviews is the number of submitted reviews a paper needs
// before it stops being flagged.
const DefaultRequiredReviews = 3

type ProgressOptions struct {
	Required int
}

// PaperProgress is the review status of one active paper.
type PaperProgress struct {
	Number           int      `json:"number" yaml:"number"`
	ID               string   `json:"id" yaml:"id"`
	Title            string   `json:"title" yaml:"title"`
	SeniorAreaChairs []string `json:"senior_area_chairs,omitempty" yaml:"senior_area_chairs,omitempty"`
	AreaChairs       []string `json:"area_chairs,omitempty" yaml:"area_chairs,omitempty"`

	Assigned  int `json:"assigned" yaml:"assigned"`
	Submitted int `json:"submitted" yaml:"submitted"`
	Missing   int `json:"missing" yaml:"missing"`

	// Unassigned counts submitted reviews by people with no assignment edge
	// on the paper.
	Unassigned int `json:"unassigned,omitempty" yaml:"unassigned,omitempty"`
}

// SeniorAreaChair returns the first senior area chair, or "UNKNOWN".
func (p PaperProgress) SeniorAreaChair() string {
	return first(p.SeniorAreaChairs)
}

// AreaChair returns the first area chair, or "UNKNOWN".
func (p PaperProgress) AreaChair() string {
	return first(p.AreaChairs)
}

func first(ids []string) string {
	if len(ids) == 0 {
		return venue.Unknown
	}
	return ids[0]
}

type ReviewBucket struct {
	Reviews int     `json:"reviews" yaml:"reviews"`
	Papers  int     `json:"papers" yaml:"papers"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// MemberProgress counts the reviews a reviewer owes.
type MemberProgress struct {
	ID          string `json:"id" yaml:"id"`
	Assigned    int    `json:"assigned" yaml:"assigned"`
	Completed   int    `json:"completed" yaml:"completed"`
	Outstanding int    `json:"outstanding" yaml:"outstanding"`
}

type ProgressReport struct {
	Required        int `json:"required" yaml:"required"`
	ActivePapers    int `json:"active_papers" yaml:"active_papers"`
	WithdrawnPapers int `json:"withdrawn_papers" yaml:"withdrawn_papers"`

	Histogram []ReviewBucket `json:"histogram" yaml:"histogram"`

	Papers  []PaperProgress `json:"papers" yaml:"papers"`
	Flagged []PaperProgress `json:"flagged" yaml:"flagged"`

	AssignedReviews   int `json:"assigned_reviews" yaml:"assigned_reviews"`
	SubmittedReviews  int `json:"submitted_reviews" yaml:"submitted_reviews"`
	MissingReviews    int `json:"missing_reviews" yaml:"missing_reviews"`
	UnassignedReviews int `json:"unassigned_reviews" yaml:"unassigned_reviews"`

	// Reviewers with at least one outstanding review, most outstanding first.
	Reviewers []MemberProgress `json:"reviewers" yaml:"reviewers"`
}

// FewerThan counts the papers with fewer than n submitted reviews.
func (r ProgressReport) FewerThan(n int) int {
	count := 0
	for _, b := range r.Histogram {
		if b.Reviews < n {
			count += b.Papers
		}
	}
	return count
}

// Progress aggregates review completion over the active submissions of a
// progress snapshot. A paper is flagged when it has fewer submitted reviews
// than opts.Required.
func Progress(snap *venue.Snapshot, opts ProgressOptions) ProgressReport {
	required := opts.Required
	if required <= 0 {
		required = DefaultRequiredReviews
	}

	active := snap.ActiveSubmissions()
	report := ProgressReport{
		Required:        required,
		ActivePapers:    len(active),
		WithdrawnPapers: len(snap.Submissions) - len(active),
		Histogram:       []ReviewBucket{},
		Papers:          make([]PaperProgress, 0, len(active)),
		Flagged:         []PaperProgress{},
		Reviewers:       []MemberProgress{},
	}

	numbers := snap.PaperNumbers()
	roles := map[venue.Role]map[int]map[string]bool{
		venue.RoleSeniorAreaChairs: {},
		venue.RoleAreaChairs:       {},
		venue.RoleReviewers:        {},
	}
	for _, a := range snap.Assignments {
		byPaper, ok := roles[a.Role]
		if !ok {
			continue
		}
		n, ok := numbers[a.PaperID]
		if !ok {
			continue
		}
		if byPaper[n] == nil {
			byPaper[n] = make(map[string]bool)
		}
		byPaper[n][a.PersonID] = true
	}

	members := make(map[string]*MemberProgress)
	member := func(id string) *MemberProgress {
		m, ok := members[id]
		if !ok {
			m = &MemberProgress{ID: id}
			members[id] = m
		}
		return m
	}

	buckets := make(map[int]int)

	for _, sub := range active {
		assigned := roles[venue.RoleReviewers][sub.Number]

		completed := make(map[string]bool)
		for _, id := range snap.Completed[sub.Number] {
			completed[id] = true
		}

		paper := PaperProgress{
			Number:           sub.Number,
			ID:               sub.ID,
			Title:            sub.Title,
			SeniorAreaChairs: sortedKeys(roles[venue.RoleSeniorAreaChairs][sub.Number]),
			AreaChairs:       sortedKeys(roles[venue.RoleAreaChairs][sub.Number]),
			Assigned:         len(assigned),
		}

		for id := range assigned {
			m := member(id)
			m.Assigned++
			if completed[id] {
				paper.Submitted++
				m.Completed++
			}
		}
		for id := range completed {
			if !assigned[id] {
				paper.Unassigned++
			}
		}
		paper.Missing = paper.Assigned - paper.Submitted

		report.AssignedReviews += paper.Assigned
		report.SubmittedReviews += paper.Submitted
		report.MissingReviews += paper.Missing
		report.UnassignedReviews += paper.Unassigned

		buckets[paper.Submitted]++
		report.Papers = append(report.Papers, paper)
		if paper.Submitted < required {
			report.Flagged = append(report.Flagged, paper)
		}
	}

	for reviews, papers := range buckets {
		report.Histogram = append(report.Histogram, ReviewBucket{
			Reviews: reviews,
			Papers:  papers,
			Percent: 100 * float64(papers) / float64(len(active)),
		})
	}
	sort.Slice(report.Histogram, func(i, j int) bool {
		return report.Histogram[i].Reviews < report.Histogram[j].Reviews
	})

	for _, m := range members {
		m.Outstanding = m.Assigned - m.Completed
		if m.Outstanding > 0 {
			report.Reviewers = append(report.Reviewers, *m)
		}
	}
	sort.Slice(report.Reviewers, func(i, j int) bool {
		a, b := report.Reviewers[i], report.Reviewers[j]
		if a.Outstanding != b.Outstanding {
			return a.Outstanding > b.Outstanding
		}
		return a.ID < b.ID
	})

	return report
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
