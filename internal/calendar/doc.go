// Package calendar reads and writes the primary Google Calendar of one
// session.
//
// Upcoming needs the calendar.read capability, CreateEvent needs
// calendar.write. Status probes whether the token can still read the primary
// calendar. Like package gmail, a Client is built per request from the access
// token returned by the access gate, and Google's 401/403 responses are
// returned wrapping google.ErrConsentRequired.
//
// MeetingProvider creates video meeting links for new events. The bundled
// LocalMeetingProvider generates placeholder links.
package calendar
