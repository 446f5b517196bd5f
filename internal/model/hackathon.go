package model

import "time"

// Location types a hackathon can be held as.
const (
	LocationOnline    = "online"
	LocationInPerson  = "in-person"
	LocationHybrid    = "hybrid"
	startDateFallback = "TBD"
)

// Location says where a hackathon happens. City is empty for online events.
type Location struct {
	Type string `json:"type"`
	City string `json:"city,omitempty"`
}

// HackathonSummary is the dashboard projection of a backend hackathon record.
//
// StartDate is nil when the backend had no usable date; presentation code
// calls StartLabel instead of formatting the pointer itself.
type HackathonSummary struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	ShortDescription string     `json:"shortDescription"`
	CoverImage       string     `json:"coverImage"`
	StartDate        *time.Time `json:"startDate"`
	Location         Location   `json:"location"`
	TotalPrizePool   int        `json:"totalPrizePool"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	OrganizerID      string     `json:"organizerId,omitempty"`
}

// StartLabel formats StartDate with layout, or returns "TBD" when unknown.
func (h HackathonSummary) StartLabel(layout string) string {
	if h.StartDate == nil {
		return startDateFallback
	}
	return h.StartDate.Format(layout)
}

// DashboardView is the role-dependent bundle a dashboard renders.
// Participants get Mine and Recommended; organizers get Managed.
type DashboardView struct {
	Role        Role               `json:"role"`
	Mine        []HackathonSummary `json:"mine,omitempty"`
	Recommended []HackathonSummary `json:"recommended,omitempty"`
	Managed     []HackathonSummary `json:"managed,omitempty"`
}

// OrganizerStats are the headline numbers for one managed hackathon.
type OrganizerStats struct {
	TotalRegistrants    int `json:"totalRegistrants"`
	TeamsFormed         int `json:"teamsFormed"`
	SubmissionsReceived int `json:"submissionsReceived"`
	LookingForTeam      int `json:"lookingForTeam"`
}
