package venue

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chairtools/chairstat/internal/openreview"
)

// API is the subset of the platform client the fetcher reads through.
type API interface {
	GetGroup(ctx context.Context, id string) (*openreview.Group, error)
	GetAllEdges(ctx context.Context, q openreview.EdgeQuery) ([]openreview.Edge, error)
	GetAllNotes(ctx context.Context, q openreview.NoteQuery) ([]openreview.Note, error)
	GetProfiles(ctx context.Context, ids []string) ([]openreview.Profile, error)
}

// Fetcher issues the read queries for one venue. Requests are made one at
// a time.
type Fetcher struct {
	api   API
	venue Venue

	// OnStage, when set, is called with a short description before each
	// fetch stage.
	OnStage func(stage string)

	now func() time.Time
}

func NewFetcher(api API, v Venue) *Fetcher {
	return &Fetcher{
		api:   api,
		venue: v,
		now:   time.Now,
	}
}

func (f *Fetcher) stage(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Debug().Str("venue", f.venue.ID).Msg(msg)
	if f.OnStage != nil {
		f.OnStage(msg)
	}
}

// FetchCapacity reads role membership and declared loads for each role.
func (f *Fetcher) FetchCapacity(ctx context.Context, roles []Role) (*Snapshot, error) {
	snap := f.newSnapshot(KindCapacity)

	for _, role := range roles {
		f.stage("Reading %s members", role)
		members, err := f.Members(ctx, role)
		if err != nil {
			return nil, err
		}
		snap.Members[role] = members

		f.stage("Reading %s max loads", role)
		loads, err := f.Loads(ctx, role)
		if err != nil {
			return nil, err
		}
		snap.Loads[role] = loads
	}

	return snap, nil
}

// FetchProgress reads submissions, SAC/AC/reviewer assignments, review
// completion and, when withEmails is set, contact emails of the chairs.
func (f *Fetcher) FetchProgress(ctx context.Context, withEmails bool) (*Snapshot, error) {
	snap := f.newSnapshot(KindProgress)

	f.stage("Reading submissions")
	submissions, err := f.Submissions(ctx)
	if err != nil {
		return nil, err
	}
	snap.Submissions = submissions

	for _, role := range []Role{RoleSeniorAreaChairs, RoleAreaChairs, RoleReviewers} {
		f.stage("Reading %s assignments", role)
		assignments, err := f.Assignments(ctx, role)
		if err != nil {
			// Venues without senior area chairs have no such invitation.
			if role == RoleSeniorAreaChairs && openreview.IsNotFound(err) {
				log.Debug().Err(err).Msg("No senior area chair assignments")
				continue
			}
			return nil, err
		}
		snap.Assignments = append(snap.Assignments, assignments...)
	}

	f.stage("Reading review completion")
	completed, err := f.CompletedReviewers(ctx, snap.ActiveSubmissions())
	if err != nil {
		return nil, err
	}
	snap.Completed = completed

	if withEmails {
		var chairs []string
		for _, a := range snap.Assignments {
			if a.Role == RoleSeniorAreaChairs || a.Role == RoleAreaChairs {
				chairs = append(chairs, a.PersonID)
			}
		}

		f.stage("Reading chair emails")
		emails, err := f.Emails(ctx, chairs)
		if err != nil {
			return nil, err
		}
		snap.Emails = emails
	}

	return snap, nil
}

// FetchRecommend reads commitment-site submissions with their meta reviews
// and the track area-chair assignments.
func (f *Fetcher) FetchRecommend(ctx context.Context, tracks []string) (*Snapshot, error) {
	snap := f.newSnapshot(KindRecommend)

	f.stage("Reading submissions and meta reviews")
	submissions, err := f.RecommendationSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	snap.Submissions = submissions

	assignments, err := f.TrackAssignments(ctx, tracks)
	if err != nil {
		return nil, err
	}
	snap.Assignments = assignments

	chairs := make(map[string]bool)
	for _, a := range assignments {
		chairs[a.PersonID] = true
	}

	f.stage("Reading chair emails")
	emails, err := f.Emails(ctx, keys(chairs))
	if err != nil {
		return nil, err
	}
	snap.Emails = emails

	return snap, nil
}

// TrackAssignments reads the assignment edges of the area chair group of
// each track. No tracks means the venue-wide Area_Chairs group. Edges of
// people who have left the group are dropped.
func (f *Fetcher) TrackAssignments(ctx context.Context, tracks []string) ([]Assignment, error) {
	if len(tracks) == 0 {
		tracks = []string{""}
	}

	var all []Assignment
	for _, track := range tracks {
		role := TrackRole(track)
		f.stage("Reading %s assignments", role)

		members, err := f.Members(ctx, role)
		if err != nil {
			return nil, err
		}
		inGroup := make(map[string]bool, len(members))
		for _, m := range members {
			inGroup[m] = true
		}

		assignments, err := f.Assignments(ctx, role)
		if err != nil {
			return nil, err
		}
		kept := 0
		for _, a := range assignments {
			if inGroup[a.PersonID] {
				all = append(all, a)
				kept++
			}
		}

		log.Debug().
			Str("track", track).
			Int("members", len(members)).
			Int("assignments", kept).
			Int("dropped", len(assignments)-kept).
			Msg("Track assignments")
	}
	return all, nil
}

func (f *Fetcher) newSnapshot(kind Kind) *Snapshot {
	return &Snapshot{
		Venue:     f.venue.ID,
		Kind:      kind,
		FetchedAt: f.now().UTC(),
		Members:   make(map[Role][]string),
		Loads:     make(map[Role]map[string]int),
		Completed: make(map[int][]string),
		Emails:    make(map[string]string),
	}
}

// Members returns the members of a role group.
func (f *Fetcher) Members(ctx context.Context, role Role) ([]string, error) {
	group, err := f.api.GetGroup(ctx, f.venue.GroupID(role))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s group: %w", role, err)
	}
	return group.Members, nil
}

// Loads returns the declared maximum load of each person in a role. When a
// person has several declarations the first one wins.
func (f *Fetcher) Loads(ctx context.Context, role Role) (map[string]int, error) {
	edges, err := f.api.GetAllEdges(ctx, openreview.EdgeQuery{
		Invitation: f.venue.RoleInvitation(role, f.venue.LoadInvitation),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s max loads: %w", role, err)
	}

	loads := make(map[string]int, len(edges))
	for _, e := range edges {
		if _, seen := loads[e.Tail]; seen {
			continue
		}
		loads[e.Tail] = int(math.Round(e.Weight))
	}
	return loads, nil
}

// Assignments returns the assignment edges of a role.
func (f *Fetcher) Assignments(ctx context.Context, role Role) ([]Assignment, error) {
	edges, err := f.api.GetAllEdges(ctx, openreview.EdgeQuery{
		Invitation: f.venue.RoleInvitation(role, f.venue.AssignmentInvitation),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s assignments: %w", role, err)
	}

	assignments := make([]Assignment, 0, len(edges))
	for _, e := range edges {
		assignments = append(assignments, Assignment{
			PaperID:  e.Head,
			PersonID: e.Tail,
			Role:     role,
			Weight:   e.Weight,
		})
	}
	return assignments, nil
}

// Submissions returns every submission ordered by number. Submissions
// missing from the active invitation are withdrawn or desk rejected.
func (f *Fetcher) Submissions(ctx context.Context) ([]Submission, error) {
	all, err := f.api.GetAllNotes(ctx, openreview.NoteQuery{
		Invitation: f.venue.Invitation(f.venue.SubmissionInvitation),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions: %w", err)
	}

	byNumber := make(map[int]*Submission, len(all))

	if f.venue.ActiveSubmissionInvitation != "" {
		active, err := f.api.GetAllNotes(ctx, openreview.NoteQuery{
			Invitation: f.venue.Invitation(f.venue.ActiveSubmissionInvitation),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read active submissions: %w", err)
		}

		for _, note := range active {
			sub := submissionFromNote(note)
			byNumber[note.Number] = &sub
		}
	}

	withdrawn := 0
	for _, note := range all {
		sub, ok := byNumber[note.Number]
		if !ok {
			if f.venue.ActiveSubmissionInvitation != "" {
				withdrawn++
			}
			s := submissionFromNote(note)
			s.Withdrawn = f.venue.ActiveSubmissionInvitation != ""
			byNumber[note.Number] = &s
			continue
		}

		if sub.OriginalID == "" && note.ID != sub.ID {
			sub.OriginalID = note.ID
		}
		if preferred := note.ContentString("preferred_venue"); preferred != "" {
			sub.PreferredVenue = strings.ToLower(strings.TrimSpace(preferred))
		}
	}

	submissions := make([]Submission, 0, len(byNumber))
	for _, sub := range byNumber {
		submissions = append(submissions, *sub)
	}
	sort.Slice(submissions, func(i, j int) bool { return submissions[i].Number < submissions[j].Number })

	log.Debug().
		Int("active", len(submissions)-withdrawn).
		Int("withdrawn", withdrawn).
		Msg("Submissions read")

	return submissions, nil
}

func submissionFromNote(note openreview.Note) Submission {
	sub := Submission{
		Number:       note.Number,
		ID:           note.ID,
		OriginalID:   note.Original,
		Title:        note.ContentString("title"),
		ResearchArea: note.ContentString("research_area"),
		Track:        note.ContentString("track"),
		PaperLink:    note.ContentString("paper_link"),
	}
	if preferred := note.ContentString("preferred_venue"); preferred != "" {
		sub.PreferredVenue = strings.ToLower(strings.TrimSpace(preferred))
	}
	return sub
}

// CompletedReviewers resolves, for each submission, the reviewers who have
// submitted a review. A paper without a submitted-reviewers group has no
// reviews yet.
func (f *Fetcher) CompletedReviewers(ctx context.Context, submissions []Submission) (map[int][]string, error) {
	completed := make(map[int][]string, len(submissions))
	resolved := make(map[string]string)

	for i, sub := range submissions {
		if i > 0 && i%100 == 0 {
			f.stage("Reading review completion (%d/%d)", i, len(submissions))
		}

		group, err := f.api.GetGroup(ctx, f.venue.SubmittedReviewersGroup(sub.Number))
		if err != nil {
			if openreview.IsNotFound(err) {
				log.Debug().Int("paper", sub.Number).Msg("No submitted reviews")
				completed[sub.Number] = nil
				continue
			}
			return nil, fmt.Errorf("failed to read submitted reviewers of paper %d: %w", sub.Number, err)
		}

		reviewers := make([]string, 0, len(group.Members))
		for _, anon := range group.Members {
			profile, ok := resolved[anon]
			if !ok {
				profile, err = f.resolveAnonymous(ctx, anon)
				if err != nil {
					return nil, err
				}
				resolved[anon] = profile
			}
			if profile == "" {
				log.Warn().
					Int("paper", sub.Number).
					Str("group", anon).
					Msg("Could not resolve reviewer profile")
				continue
			}
			reviewers = append(reviewers, profile)
		}
		completed[sub.Number] = reviewers
	}

	return completed, nil
}

// resolveAnonymous returns the profile behind an anonymous reviewer group,
// or "" when the group is hidden or empty.
func (f *Fetcher) resolveAnonymous(ctx context.Context, anon string) (string, error) {
	if strings.HasPrefix(anon, "~") {
		return anon, nil
	}

	group, err := f.api.GetGroup(ctx, anon)
	if err != nil {
		if openreview.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve reviewer %s: %w", anon, err)
	}
	if len(group.Members) == 0 {
		return "", nil
	}
	return group.Members[0], nil
}

// Emails returns the contact email of each person with a profile.
func (f *Fetcher) Emails(ctx context.Context, ids []string) (map[string]string, error) {
	unique := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			unique[id] = true
		}
	}
	if len(unique) == 0 {
		return map[string]string{}, nil
	}

	profiles, err := f.api.GetProfiles(ctx, keys(unique))
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	emails := make(map[string]string, len(profiles))
	for _, p := range profiles {
		if email := p.Email(); email != "" {
			emails[p.ID] = email
		}
	}
	return emails, nil
}

// RecommendationSubmissions reads commitment-site submissions with their
// direct replies. A meta review signed by the venue itself is a copy from
// an earlier cycle; any other signer is the senior area chair.
func (f *Fetcher) RecommendationSubmissions(ctx context.Context) ([]Submission, error) {
	notes, err := f.api.GetAllNotes(ctx, openreview.NoteQuery{
		Invitation: f.venue.Invitation(f.venue.SubmissionInvitation),
		Details:    "directReplies",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions: %w", err)
	}

	submissions := make([]Submission, 0, len(notes))
	for _, note := range notes {
		sub := submissionFromNote(note)

		if note.Details != nil {
			for _, reply := range note.Details.DirectReplies {
				if !reply.PostedTo(f.venue.MetaReviewInvitation) {
					continue
				}

				if len(reply.Signatures) > 0 && reply.Signatures[0] == f.venue.ID {
					month, ac, ok := previousCycle(reply.ContentString("title"))
					if ok {
						if sub.PreviousAC == nil {
							sub.PreviousAC = make(map[string]string)
						}
						sub.PreviousAC[month] = ac
					}
					continue
				}

				sub.MetaReview = &MetaReview{
					Recommendation:     reply.ContentString("recommendation"),
					Text:               reply.ContentString("metareview"),
					Award:              reply.ContentString("award"),
					AwardJustification: reply.ContentString("award_justification"),
				}
			}
		}

		submissions = append(submissions, sub)
	}

	sort.Slice(submissions, func(i, j int) bool { return submissions[i].Number < submissions[j].Number })
	return submissions, nil
}

// previousCycle extracts the cycle month and anonymous AC from the title of
// a copied meta review, e.g.
// "Meta review copied from ARR February 2024 by Area_Chair_AbCd".
func previousCycle(title string) (month, ac string, ok bool) {
	words := strings.Fields(title)
	if len(words) < 9 {
		return "", "", false
	}
	return words[5], words[8], true
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
