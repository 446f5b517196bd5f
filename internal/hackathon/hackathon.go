// Package hackathon maps raw backend hackathon documents to
// model.HackathonSummary and derives the dashboard projections.
//
// The backend has emitted several field spellings over time, so records are
// read with gjson and every field goes through an ordered list of aliases
// before its default applies. All functions are pure.
package hackathon

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sakif/hackhub/internal/model"
)

// Defaults for fields a record leaves out.
const (
	DefaultCurrency = "USD"
	DefaultStatus   = "upcoming"
	DefaultLocation = model.LocationOnline
)

// Map converts a raw JSON array of backend documents. Elements that are not
// objects are skipped; invalid JSON yields an empty slice.
func Map(raw json.RawMessage) []model.HackathonSummary {
	out := []model.HackathonSummary{}
	if !gjson.ValidBytes(raw) {
		return out
	}
	gjson.ParseBytes(raw).ForEach(func(_, doc gjson.Result) bool {
		if doc.IsObject() {
			out = append(out, MapOne(doc))
		}
		return true
	})
	return out
}

// MapOne converts a single backend document.
func MapOne(doc gjson.Result) model.HackathonSummary {
	return model.HackathonSummary{
		ID:               first(doc, "$id", "id").String(),
		Title:            doc.Get("title").String(),
		ShortDescription: first(doc, "short_description", "tagline", "description").String(),
		CoverImage:       first(doc, "cover_image", "banner_url").String(),
		StartDate:        parseDate(first(doc, "start_date", "starts_at").String()),
		Location:         parseLocation(doc),
		TotalPrizePool:   ParsePrizePool(first(doc, "total_prize_pool", "prize_pool")),
		Currency:         orDefault(doc.Get("currency").String(), DefaultCurrency),
		Status:           orDefault(doc.Get("status").String(), DefaultStatus),
		OrganizerID:      doc.Get("organizer_id").String(),
	}
}

// ParsePrizePool reads a prize amount given as a number or a numeric string.
// Anything missing, non-numeric, non-finite or negative is 0; fractions are
// truncated.
func ParsePrizePool(v gjson.Result) int {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f >= math.MaxInt64 {
		return 0
	}
	return int(f)
}

// DeriveMine maps the viewer's own collection.
func DeriveMine(raw json.RawMessage) []model.HackathonSummary {
	return Map(raw)
}

// DeriveRecommended maps the full collection minus hackathons organized by
// viewerID.
func DeriveRecommended(allRaw json.RawMessage, viewerID string) []model.HackathonSummary {
	all := Map(allRaw)
	out := all[:0]
	for _, h := range all {
		if viewerID != "" && h.OrganizerID == viewerID {
			continue
		}
		out = append(out, h)
	}
	return out
}

// DeriveManaged keeps only hackathons organized by viewerID.
func DeriveManaged(allRaw json.RawMessage, viewerID string) []model.HackathonSummary {
	out := []model.HackathonSummary{}
	if viewerID == "" {
		return out
	}
	for _, h := range Map(allRaw) {
		if h.OrganizerID == viewerID {
			out = append(out, h)
		}
	}
	return out
}

// ExcludeIDs returns the entries of list whose ID is not in exclude.
func ExcludeIDs(list, exclude []model.HackathonSummary) []model.HackathonSummary {
	if len(exclude) == 0 {
		return list
	}
	seen := make(map[string]struct{}, len(exclude))
	for _, h := range exclude {
		seen[h.ID] = struct{}{}
	}
	out := make([]model.HackathonSummary, 0, len(list))
	for _, h := range list {
		if _, ok := seen[h.ID]; !ok {
			out = append(out, h)
		}
	}
	return out
}

// first returns the first alias present with a non-null value.
func first(doc gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := doc.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseLocation accepts {"location": {"type", "city"}}, a bare location
// string, or the flat location_type/city pair.
func parseLocation(doc gjson.Result) model.Location {
	loc := doc.Get("location")
	switch {
	case loc.IsObject():
		return model.Location{
			Type: orDefault(loc.Get("type").String(), DefaultLocation),
			City: loc.Get("city").String(),
		}
	case loc.Type == gjson.String && loc.Str != "":
		if isLocationType(loc.Str) {
			return model.Location{Type: loc.Str, City: doc.Get("city").String()}
		}
		return model.Location{Type: model.LocationInPerson, City: loc.Str}
	}
	return model.Location{
		Type: orDefault(doc.Get("location_type").String(), DefaultLocation),
		City: doc.Get("city").String(),
	}
}

func isLocationType(s string) bool {
	switch s {
	case model.LocationOnline, model.LocationInPerson, model.LocationHybrid:
		return true
	}
	return false
}
