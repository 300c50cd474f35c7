package calendar

import (
	"errors"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// EventTime is either a timed instant (DateTime) or an all-day date (Date).
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// IsZero reports whether neither a date nor a date-time is set.
func (t EventTime) IsZero() bool {
	return t.DateTime == "" && t.Date == ""
}

// Attendee is an event guest.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// EntryPoint is one way to join a conference.
type EntryPoint struct {
	EntryPointType string `json:"entryPointType"`
	URI            string `json:"uri"`
	Label          string `json:"label,omitempty"`
}

// Conference is the video conference attached to an event.
type Conference struct {
	ConferenceID string       `json:"conferenceId"`
	Solution     string       `json:"solution,omitempty"`
	EntryPoints  []EntryPoint `json:"entryPoints,omitempty"`
}

// Event is a calendar event as shown by the dashboard.
type Event struct {
	ID          string      `json:"id"`
	Summary     string      `json:"summary"`
	Description string      `json:"description,omitempty"`
	Location    string      `json:"location,omitempty"`
	Start       EventTime   `json:"start"`
	End         EventTime   `json:"end"`
	IsAllDay    bool        `json:"isAllDay"`
	Attendees   []Attendee  `json:"attendees,omitempty"`
	HTMLLink    string      `json:"htmlLink,omitempty"`
	Conference  *Conference `json:"conferenceData,omitempty"`
}

// EventInput is a new event.
type EventInput struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// Validate checks the required fields and that a timed event does not end
// before it starts.
func (in EventInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Summary) == "":
		return errors.New("summary is required")
	case in.Start.IsZero():
		return errors.New("start is required")
	case in.End.IsZero():
		return errors.New("end is required")
	}
	if in.Start.DateTime != "" && in.End.DateTime != "" {
		start, err := time.Parse(time.RFC3339, in.Start.DateTime)
		if err != nil {
			return errors.New("start.dateTime must be RFC 3339")
		}
		end, err := time.Parse(time.RFC3339, in.End.DateTime)
		if err != nil {
			return errors.New("end.dateTime must be RFC 3339")
		}
		if end.Before(start) {
			return errors.New("end must not be before start")
		}
	}
	return nil
}

func (in EventInput) toAPI() *calendar.Event {
	e := &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Location:    in.Location,
		Start:       &calendar.EventDateTime{DateTime: in.Start.DateTime, Date: in.Start.Date, TimeZone: in.Start.TimeZone},
		End:         &calendar.EventDateTime{DateTime: in.End.DateTime, Date: in.End.Date, TimeZone: in.End.TimeZone},
		Reminders:   &calendar.EventReminders{UseDefault: true},
	}
	for _, email := range in.Attendees {
		e.Attendees = append(e.Attendees, &calendar.EventAttendee{Email: email})
	}
	return e
}

func toEventTime(t *calendar.EventDateTime) EventTime {
	if t == nil {
		return EventTime{}
	}
	return EventTime{DateTime: t.DateTime, Date: t.Date, TimeZone: t.TimeZone}
}

func toEvent(e *calendar.Event) Event {
	out := Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Start:       toEventTime(e.Start),
		End:         toEventTime(e.End),
		HTMLLink:    e.HtmlLink,
	}
	out.IsAllDay = out.Start.Date != "" && out.Start.DateTime == ""

	for _, a := range e.Attendees {
		out.Attendees = append(out.Attendees, Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			ResponseStatus: a.ResponseStatus,
		})
	}

	if cd := e.ConferenceData; cd != nil {
		conf := &Conference{ConferenceID: cd.ConferenceId}
		if cd.ConferenceSolution != nil {
			conf.Solution = cd.ConferenceSolution.Name
		}
		for _, ep := range cd.EntryPoints {
			conf.EntryPoints = append(conf.EntryPoints, EntryPoint{
				EntryPointType: ep.EntryPointType,
				URI:            ep.Uri,
				Label:          ep.Label,
			})
		}
		out.Conference = conf
	}
	return out
}
