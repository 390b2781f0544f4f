package venue

import "fmt"

// Venue names the groups and invitations of one venue. Invitation fields
// hold the short names; the methods build full ids.
type Venue struct {
	ID string

	SubmissionInvitation       string
	ActiveSubmissionInvitation string
	LoadInvitation             string
	AssignmentInvitation       string
	MetaReviewInvitation       string
}

// New returns a venue with the invitation names ARR cycles use.
func New(id string) Venue {
	return Venue{
		ID:                         id,
		SubmissionInvitation:       "Submission",
		ActiveSubmissionInvitation: "Blind_Submission",
		LoadInvitation:             "Custom_Max_Papers",
		AssignmentInvitation:       "Assignment",
		MetaReviewInvitation:       "Meta_Review",
	}
}

// GroupID returns the id of a role group, e.g. venue/Reviewers.
func (v Venue) GroupID(role Role) string {
	return fmt.Sprintf("%s/%s", v.ID, role)
}

// Invitation returns a venue-level invitation id, e.g. venue/-/Submission.
func (v Venue) Invitation(name string) string {
	return fmt.Sprintf("%s/-/%s", v.ID, name)
}

// RoleInvitation returns a role-level invitation id, e.g.
// venue/Reviewers/-/Assignment.
func (v Venue) RoleInvitation(role Role, name string) string {
	return fmt.Sprintf("%s/%s/-/%s", v.ID, role, name)
}

// SubmittedReviewersGroup returns the group of anonymous reviewers who have
// submitted a review for the paper.
func (v Venue) SubmittedReviewersGroup(number int) string {
	return fmt.Sprintf("%s/Paper%d/Reviewers/Submitted", v.ID, number)
}
