// Package profile turns identity-provider and backend records into the
// canonical model.UserProfile, and canonical edits back into backend bodies.
//
// Everything here is pure: no I/O, no logging, no clock. The session service
// decides which constructor to call; this package only decides what the
// resulting profile looks like.
package profile

import (
	"slices"
	"strings"
	"time"

	"github.com/sakif/hackhub/internal/backend"
	"github.com/sakif/hackhub/internal/model"
)

// FromRecord maps a backend user record to a UserProfile.
//
// Fields the record leaves out take their defaults: empty slices, zero
// counters, participant role. Identity fields the record is missing (id,
// username, email, name, created_at) are taken from ident so a sparse record
// never produces a profile worse than Fallback would.
func FromRecord(rec *backend.UserRecord, ident model.Identity) *model.UserProfile {
	p := Fallback(ident)

	if rec.ID != "" {
		p.ID = rec.ID
	}
	if v := deref(rec.Name); v != "" {
		p.Name = v
	}
	if v := deref(rec.Email); v != "" {
		p.Email = v
	}
	if v := deref(rec.Username); v != "" {
		p.Username = v
	} else if rec.Name != nil {
		p.Username = Slug(p.Name)
	}

	p.Avatar = deref(rec.AvatarURL)
	p.Bio = deref(rec.Bio)
	p.GitHubURL = deref(rec.GitHubURL)
	p.PortfolioURL = deref(rec.PortfolioURL)
	p.Skills = cloneOrEmpty(rec.Skills)
	p.TechStack = cloneOrEmpty(rec.TechStack)

	if rec.XP != nil && *rec.XP > 0 {
		p.XP = *rec.XP
	}
	if rec.ReputationScore != nil {
		p.ReputationScore = *rec.ReputationScore
	}
	if rec.Role != nil {
		p.Role = model.ParseRole(*rec.Role)
	}
	if t, ok := parseTime(rec.CreatedAt); ok {
		p.CreatedAt = t
	}

	return p
}

// Fallback builds the minimal profile used when the backend record cannot be
// fetched. Gamification counters are zero, badges are empty and the username
// is the slug of the display name.
func Fallback(ident model.Identity) *model.UserProfile {
	return &model.UserProfile{
		ID:        ident.ID,
		Username:  Slug(ident.Name),
		Email:     ident.Email,
		Name:      ident.Name,
		Skills:    []string{},
		TechStack: []string{},
		Badges:    []model.Badge{},
		Role:      model.RoleParticipant,
		CreatedAt: ident.CreatedAt,
	}
}

// Slug lowercases name and strips all whitespace: "Jane Doe" -> "janedoe".
func Slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

// ToUpdate maps a canonical partial update to the backend's field names.
// Unset fields stay nil and are omitted from the request body. Slices are
// copied so the caller can keep mutating its own.
func ToUpdate(u model.ProfileUpdate) backend.UserUpdate {
	return backend.UserUpdate{
		Name:         u.Name,
		Bio:          u.Bio,
		Skills:       cloneSlicePtr(u.Skills),
		TechStack:    cloneSlicePtr(u.TechStack),
		GitHubURL:    u.GitHubURL,
		PortfolioURL: u.PortfolioURL,
		AvatarURL:    u.Avatar,
	}
}

// SyncRequestFor is the post-login sync body for ident.
func SyncRequestFor(ident model.Identity) backend.SyncRequest {
	return backend.SyncRequest{
		ID:       ident.ID,
		Email:    ident.Email,
		Name:     ident.Name,
		Username: Slug(ident.Name),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func cloneSlicePtr(s *[]string) *[]string {
	if s == nil {
		return nil
	}
	c := cloneOrEmpty(*s)
	return &c
}

// parseTime accepts the timestamp shapes the backend has been seen to emit.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
