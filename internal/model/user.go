// Package model defines the data structures shared by the session, dashboard
// and HTTP layers. Types here carry no behaviour beyond small derived values.
package model

import (
	"encoding/json"
	"time"
)

// xpPerLevel is the amount of XP separating two levels.
const xpPerLevel = 1000

// Identity is the identity provider's view of a logged-in account.
// It is read-only to this module: we never write back to the provider.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Badge is an achievement shown on a profile.
type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	EarnedAt    time.Time `json:"earnedAt"`
}

// Role decides which dashboard projections a viewer gets.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleOrganizer   Role = "organizer"
)

// ParseRole maps a backend role string to a Role. Anything unrecognised is
// a participant.
func ParseRole(s string) Role {
	if Role(s) == RoleOrganizer {
		return RoleOrganizer
	}
	return RoleParticipant
}

// UserProfile is the normalized application-level profile.
//
// LEVEL IS DERIVED:
// There is no Level field. Level() computes it from XP every time, and
// MarshalJSON emits it under "level" so API consumers still see it.
//
// Profiles are built whole by the profile package and replaced, never patched.
type UserProfile struct {
	ID                     string    `json:"id"`
	Username               string    `json:"username"`
	Email                  string    `json:"email"`
	Name                   string    `json:"name"`
	Avatar                 string    `json:"avatar,omitempty"`
	Bio                    string    `json:"bio,omitempty"`
	Skills                 []string  `json:"skills"`
	TechStack              []string  `json:"techStack"`
	GitHubURL              string    `json:"githubUrl,omitempty"`
	PortfolioURL           string    `json:"portfolioUrl,omitempty"`
	XP                     int       `json:"xp"`
	Badges                 []Badge   `json:"badges"`
	HackathonsParticipated int       `json:"hackathonsParticipated"`
	HackathonsWon          int       `json:"hackathonsWon"`
	ReputationScore        float64   `json:"reputationScore"`
	Role                   Role      `json:"role"`
	CreatedAt              time.Time `json:"createdAt"`
}

// Level returns floor(XP/1000)+1. Negative XP counts as zero.
func (u UserProfile) Level() int {
	return LevelForXP(u.XP)
}

// LevelForXP is the level formula on its own, for callers holding only XP.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/xpPerLevel + 1
}

// MarshalJSON adds the derived level to the encoded profile.
func (u UserProfile) MarshalJSON() ([]byte, error) {
	// profileAlias drops the method set so json.Marshal doesn't recurse.
	type profileAlias UserProfile
	return json.Marshal(struct {
		profileAlias
		Level int `json:"level"`
	}{
		profileAlias: profileAlias(u),
		Level:        u.Level(),
	})
}

// ProfileUpdate is a partial profile edit. Nil fields are left untouched by
// the backend; a non-nil pointer to an empty value clears the field.
type ProfileUpdate struct {
	Name         *string   `json:"name,omitempty"`
	Bio          *string   `json:"bio,omitempty"`
	Skills       *[]string `json:"skills,omitempty"`
	TechStack    *[]string `json:"techStack,omitempty"`
	GitHubURL    *string   `json:"githubUrl,omitempty"`
	PortfolioURL *string   `json:"portfolioUrl,omitempty"`
	Avatar       *string   `json:"avatar,omitempty"`
}

// SignupRequest is what a new account is registered with.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Result is the outcome of a user-initiated session operation. Failures are
// reported here with a human-readable message rather than as Go errors.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Succeeded is the zero-message success result.
func Succeeded() Result {
	return Result{Success: true}
}

// Failed builds a failure result carrying msg.
func Failed(msg string) Result {
	return Result{Success: false, Error: msg}
}
