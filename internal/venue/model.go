package venue

import (
	"sort"
	"strings"
	"time"

	"github.com/stoewer/go-strcase"
)

// Role is the name of a committee group under a venue, e.g. "Reviewers".
type Role string

const (
	RoleSeniorAreaChairs Role = "Senior_Area_Chairs"
	RoleAreaChairs       Role = "Area_Chairs"
	RoleReviewers        Role = "Reviewers"
)

// Key returns the role as a snake_case key for metric labels and documents.
func (r Role) Key() string {
	return strcase.SnakeCase(string(r))
}

// TrackRole returns the area-chair role of a commitment-site track. The
// empty track is the venue-wide area-chair group.
func TrackRole(track string) Role {
	if track == "" {
		return RoleAreaChairs
	}
	return Role(track + "_" + string(RoleAreaChairs))
}

// Kind names the pipeline a snapshot was fetched for.
type Kind string

const (
	KindCapacity  Kind = "capacity"
	KindProgress  Kind = "progress"
	KindRecommend Kind = "recommend"
)

// Submission is a paper. Number is the venue-local paper number; ID is the
// note id edges point at.
type Submission struct {
	Number         int         `json:"number" yaml:"number"`
	ID             string      `json:"id" yaml:"id"`
	OriginalID     string      `json:"original_id,omitempty" yaml:"original_id,omitempty"`
	Title          string      `json:"title" yaml:"title"`
	ResearchArea   string      `json:"research_area,omitempty" yaml:"research_area,omitempty"`
	Track          string      `json:"track,omitempty" yaml:"track,omitempty"`
	PreferredVenue string      `json:"preferred_venue,omitempty" yaml:"preferred_venue,omitempty"`
	PaperLink      string      `json:"paper_link,omitempty" yaml:"paper_link,omitempty"`
	Withdrawn      bool        `json:"withdrawn" yaml:"withdrawn"`
	MetaReview     *MetaReview `json:"meta_review,omitempty" yaml:"meta_review,omitempty"`

	// PreviousAC maps a cycle month to the anonymous AC of a meta review
	// carried over from that cycle.
	PreviousAC map[string]string `json:"previous_ac,omitempty" yaml:"previous_ac,omitempty"`
}

// MetaReview is the senior area chair's recommendation on a commitment site.
type MetaReview struct {
	Recommendation     string `json:"recommendation" yaml:"recommendation"`
	Text               string `json:"metareview" yaml:"metareview"`
	Award              string `json:"award,omitempty" yaml:"award,omitempty"`
	AwardJustification string `json:"award_justification,omitempty" yaml:"award_justification,omitempty"`
}

// Assignment is a reviewing duty of a person on a paper.
type Assignment struct {
	PaperID  string  `json:"paper_id" yaml:"paper_id"`
	PersonID string  `json:"person_id" yaml:"person_id"`
	Role     Role    `json:"role" yaml:"role"`
	Weight   float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Snapshot is everything fetched for one pipeline run. It is never mutated
// after the fetch completes.
type Snapshot struct {
	Venue     string    `json:"venue" yaml:"venue"`
	Kind      Kind      `json:"kind" yaml:"kind"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`

	Submissions []Submission `json:"submissions,omitempty" yaml:"submissions,omitempty"`

	// Members of each role group.
	Members map[Role][]string `json:"members,omitempty" yaml:"members,omitempty"`

	// Loads holds declared maximum loads per role. People without a
	// declaration are absent.
	Loads map[Role]map[string]int `json:"loads,omitempty" yaml:"loads,omitempty"`

	Assignments []Assignment `json:"assignments,omitempty" yaml:"assignments,omitempty"`

	// Completed lists, per paper number, the reviewers who submitted a review.
	Completed map[int][]string `json:"completed,omitempty" yaml:"completed,omitempty"`

	Emails map[string]string `json:"emails,omitempty" yaml:"emails,omitempty"`
}

// ActiveSubmissions returns the submissions that are not withdrawn, ordered
// by number.
func (s *Snapshot) ActiveSubmissions() []Submission {
	active := make([]Submission, 0, len(s.Submissions))
	for _, sub := range s.Submissions {
		if !sub.Withdrawn {
			active = append(active, sub)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Number < active[j].Number })
	return active
}

// PaperNumbers maps both the note id and the original note id of every
// submission to its number, so edges on either id resolve.
func (s *Snapshot) PaperNumbers() map[string]int {
	numbers := make(map[string]int, 2*len(s.Submissions))
	for _, sub := range s.Submissions {
		if sub.ID != "" {
			numbers[sub.ID] = sub.Number
		}
		if sub.OriginalID != "" {
			numbers[sub.OriginalID] = sub.Number
		}
	}
	return numbers
}

// Email returns the email of a person, or "UNKNOWN".
func (s *Snapshot) Email(personID string) string {
	if email := strings.TrimSpace(s.Emails[personID]); email != "" {
		return email
	}
	return Unknown
}

// Unknown stands in for a person or email that could not be resolved.
const Unknown = "UNKNOWN"
