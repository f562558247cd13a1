// Package simplycompete describes the remote event-management API: where its
// list endpoints live, what they expect on the wire and how their records are read.
package simplycompete

import (
	"fmt"
	"strconv"
	"strings"

	"competesync/pkg/config"
	"competesync/pkg/paginator"
)

const (
	// BaseURL is the default tenant
	BaseURL = "https://worldtkd.simplycompete.com"

	// EventListEndpoint lists competitions, paged from 1
	EventListEndpoint = "/events/eventList"

	// ParticipantsEndpoint lists the participants of one event, paged from 0
	ParticipantsEndpoint = "/events/getEventParticipant"

	// DefaultItemsPerPage matches the page size the web UI requests
	DefaultItemsPerPage = 12

	// CompetitionsCollection and ParticipantsCollection name the local store collections
	CompetitionsCollection = "competitions"
	ParticipantsCollection = "participants"
)

// Competitions returns the paginated description of the event list
func Competitions(cfg *config.Config) paginator.Endpoint {
	base := baseURL(cfg)
	perPage := cfg.Fetch.ItemsPerPage
	if perPage <= 0 {
		perPage = DefaultItemsPerPage
	}

	paths := cfg.Fetch.CompetitionsPaths
	if len(paths) == 0 {
		paths = []string{"events", "data", "content"}
	}
	// a bare top-level list is accepted last
	fallbacks := append(append([]string{}, paths[1:]...), "")

	return paginator.Endpoint{
		URL:       base + EventListEndpoint,
		PageParam: "pageNumber",
		FirstPage: 1,
		Query: map[string]string{
			"da":               "true",
			"eventType":        "All",
			"invitationStatus": "all",
			"isArchived":       "false",
			"itemsPerPage":     strconv.Itoa(perPage),
		},
		Headers: func(paginator.PageRequest) map[string]string {
			return map[string]string{"Referer": base + "/events"}
		},
		ItemPath:      paths[0],
		FallbackPaths: fallbacks,
	}
}

// Participants returns the paginated description of an event's participant list.
// The resource is the event id; the optional filter is a role node id.
func Participants(cfg *config.Config) paginator.Endpoint {
	base := baseURL(cfg)
	path := cfg.Fetch.ParticipantsPath
	if path == "" {
		path = "data.data.participantList"
	}

	return paginator.Endpoint{
		URL:           base + ParticipantsEndpoint,
		PageParam:     "pageNo",
		FirstPage:     0,
		ResourceParam: "eventId",
		FilterParam:   "nodeId",
		Query: map[string]string{
			"isHideUnpaidEntries": "false",
		},
		Extra: func(req paginator.PageRequest) map[string]string {
			if req.FilterID == "" {
				return nil
			}
			return map[string]string{"nodeLevel": "EventRole"}
		},
		Headers: func(req paginator.PageRequest) map[string]string {
			return map[string]string{"Referer": EventDetailsURL(base, req.ResourceID)}
		},
		ItemPath: path,
	}
}

// EventDetailsURL is the page a browser would be on when listing participants
func EventDetailsURL(base, eventID string) string {
	return fmt.Sprintf("%s/eventDetails/%s/5", strings.TrimRight(base, "/"), eventID)
}

// ParticipantsKey is the store collection holding the participants of one event
func ParticipantsKey(eventID string) string {
	return ParticipantsCollection + ":" + eventID
}

func baseURL(cfg *config.Config) string {
	if cfg.Remote.BaseURL == "" {
		return BaseURL
	}
	return strings.TrimRight(cfg.Remote.BaseURL, "/")
}
