// Package calendar_tools provides MCP tools for the primary Google Calendar.
//
// Tools:
//   - calendar_upcoming: events in the upcoming window
//   - calendar_create_event: create a timed or all-day event
//   - calendar_create_meeting: issue a video meeting link to put in an event
//
// calendar_create_event needs the calendar.write capability; reading needs
// calendar.read. A missing grant is reported with the consent URL.
package calendar_tools
