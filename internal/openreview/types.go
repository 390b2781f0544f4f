package openreview

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Group is a named membership list, e.g. all reviewers of a venue.
type Group struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

// Edge is a typed head/tail relation: assignments, affinities, quotas.
type Edge struct {
	ID         string  `json:"id"`
	Invitation string  `json:"invitation"`
	Head       string  `json:"head"`
	Tail       string  `json:"tail"`
	Weight     float64 `json:"weight"`
	Label      string  `json:"label,omitempty"`
}

// Note is a typed record: submission, review, meta review or decision.
type Note struct {
	ID          string                     `json:"id"`
	Number      int                        `json:"number"`
	Original    string                     `json:"original,omitempty"`
	Forum       string                     `json:"forum,omitempty"`
	Invitation  string                     `json:"invitation,omitempty"`
	Invitations []string                   `json:"invitations,omitempty"`
	Signatures  []string                   `json:"signatures,omitempty"`
	Content     map[string]json.RawMessage `json:"content"`
	Details     *NoteDetails               `json:"details,omitempty"`
}

// NoteDetails carries the optional expansions requested with details=.
type NoteDetails struct {
	DirectReplies []Note `json:"directReplies,omitempty"`
}

// ContentValue returns a content field. API v2 wraps every field in
// {"value": ...}; API v1 stores the value directly.
func (n Note) ContentValue(key string) gjson.Result {
	raw, ok := n.Content[key]
	if !ok {
		return gjson.Result{}
	}

	value := gjson.ParseBytes(raw)
	if value.IsObject() && value.Get("value").Exists() {
		return value.Get("value")
	}
	return value
}

// ContentString returns a content field as a string, or "" when absent.
func (n Note) ContentString(key string) string {
	return n.ContentValue(key).String()
}

// HasContent reports whether the content field is present.
func (n Note) HasContent(key string) bool {
	return n.ContentValue(key).Exists()
}

// InvitationIDs returns the invitations the note was posted to, for both
// API versions.
func (n Note) InvitationIDs() []string {
	if len(n.Invitations) > 0 {
		return n.Invitations
	}
	if n.Invitation != "" {
		return []string{n.Invitation}
	}
	return nil
}

// PostedTo reports whether the first invitation ends with suffix.
func (n Note) PostedTo(suffix string) bool {
	ids := n.InvitationIDs()
	return len(ids) > 0 && strings.HasSuffix(ids[0], suffix)
}

// Profile is a user profile. Only contact fields are decoded.
type Profile struct {
	ID      string         `json:"id"`
	Content ProfileContent `json:"content"`
}

type ProfileContent struct {
	PreferredEmail  string   `json:"preferredEmail,omitempty"`
	EmailsConfirmed []string `json:"emailsConfirmed,omitempty"`
	Emails          []string `json:"emails,omitempty"`
}

// Email returns the preferred email, else the first confirmed email, else
// the first listed email.
func (p Profile) Email() string {
	switch {
	case p.Content.PreferredEmail != "":
		return p.Content.PreferredEmail
	case len(p.Content.EmailsConfirmed) > 0:
		return p.Content.EmailsConfirmed[0]
	case len(p.Content.Emails) > 0:
		return p.Content.Emails[0]
	default:
		return ""
	}
}

// EdgeQuery selects edges of one invitation.
type EdgeQuery struct {
	Invitation string
	Head       string
	Tail       string
}

// NoteQuery selects notes of one invitation.
type NoteQuery struct {
	Invitation string
	Details    string
}
