package backend

// UserRecord is the backend's user document as returned by GET /users/{id}.
//
// Optional fields are pointers so "absent" and "empty" stay distinguishable;
// the profile package owns the default applied to each one.
type UserRecord struct {
	ID              string   `json:"id"`
	Username        *string  `json:"username"`
	Email           *string  `json:"email"`
	Name            *string  `json:"name"`
	AvatarURL       *string  `json:"avatar_url"`
	Bio             *string  `json:"bio"`
	Skills          []string `json:"skills"`
	TechStack       []string `json:"tech_stack"`
	GitHubURL       *string  `json:"github_url"`
	PortfolioURL    *string  `json:"portfolio_url"`
	XP              *int     `json:"xp"`
	ReputationScore *float64 `json:"reputation_score"`
	Role            *string  `json:"role"`
	CreatedAt       string   `json:"created_at"`
}

// UserUpdate is the PUT /users/{id} body. Nil fields are omitted from the
// JSON so the backend leaves them unchanged.
type UserUpdate struct {
	Name         *string   `json:"name,omitempty"`
	Bio          *string   `json:"bio,omitempty"`
	Skills       *[]string `json:"skills,omitempty"`
	TechStack    *[]string `json:"tech_stack,omitempty"`
	GitHubURL    *string   `json:"github_url,omitempty"`
	PortfolioURL *string   `json:"portfolio_url,omitempty"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
}

// SyncRequest is the POST /auth/login body that makes sure an application
// record exists for a freshly authenticated identity.
type SyncRequest struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// RegisterRequest is the POST /auth/register body.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// organizerStatsResponse is the GET /organizer/{id}/stats body.
type organizerStatsResponse struct {
	TotalRegistrants    int `json:"total_registrants"`
	TeamsFormed         int `json:"teams_formed"`
	SubmissionsReceived int `json:"submissions_received"`
	LookingForTeam      int `json:"looking_for_team"`
}
