package simplycompete

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"competesync/pkg/paginator"
)

// Competition is the normalized form of an event list entry
type Competition struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startDate,omitempty"`
}

// NormalizeCompetitions keeps id, name and start date of every event that has
// both an id and a name. The start date falls back to "date".
func NormalizeCompetitions(items []paginator.RawItem) []paginator.RawItem {
	out := make([]paginator.RawItem, 0, len(items))
	for _, item := range items {
		id := stringField(item, "id")
		name := stringField(item, "name")
		if id == "" || name == "" {
			continue
		}

		start := stringField(item, "startDate")
		if start == "" {
			start = stringField(item, "date")
		}

		normalized := paginator.RawItem{"id": id, "name": name}
		if start != "" {
			normalized["startDate"] = start
		}
		out = append(out, normalized)
	}
	return out
}

// CompetitionFromRaw reads a normalized record back
func CompetitionFromRaw(item paginator.RawItem) Competition {
	return Competition{
		ID:        stringField(item, "id"),
		Name:      stringField(item, "name"),
		StartDate: stringField(item, "startDate"),
	}
}

// Participant is the display view of a participant record
type Participant struct {
	ID        string
	FirstName string
	LastName  string
	Country   string
	Division  string
	Club      string
	LicenseID string
	Seed      string
}

// Name joins the preferred first and last names
func (p Participant) Name() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return "Unknown"
	}
	return name
}

// ParticipantFromRaw reads display fields, preferring the "preferred" name
// variants and the registered club over a custom one.
func ParticipantFromRaw(item paginator.RawItem) Participant {
	p := Participant{
		ID:        firstField(item, "participantId", "id"),
		FirstName: firstField(item, "preferredFirstName", "firstName"),
		LastName:  firstField(item, "preferredLastName", "lastName"),
		Country:   firstField(item, "country"),
		Division:  firstField(item, "divisionName"),
		Club:      firstField(item, "clubName", "customClubName"),
		LicenseID: firstField(item, "wtfLicenseId"),
		Seed:      firstField(item, "seedNumber"),
	}
	if p.Country == "" {
		p.Country = "Unknown"
	}
	if p.Division == "" {
		p.Division = "No Division"
	}
	return p
}

// DivisionCount is the number of participants in one division
type DivisionCount struct {
	Division string
	Count    int
}

// DivisionSummary counts participants per division, sorted by division name
func DivisionSummary(participants []Participant) []DivisionCount {
	counts := make(map[string]int)
	for _, p := range participants {
		counts[p.Division]++
	}

	summary := make([]DivisionCount, 0, len(counts))
	for div, n := range counts {
		summary = append(summary, DivisionCount{Division: div, Count: n})
	}
	sort.Slice(summary, func(i, j int) bool {
		return summary[i].Division < summary[j].Division
	})
	return summary
}

func firstField(item paginator.RawItem, keys ...string) string {
	for _, k := range keys {
		if v := stringField(item, k); v != "" {
			return v
		}
	}
	return ""
}

// stringField renders scalar JSON values as strings; numbers keep integer form
func stringField(item paginator.RawItem, key string) string {
	switch v := item[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return ""
	}
}
