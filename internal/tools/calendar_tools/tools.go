package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailcal/internal/calendar"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/server"
	"github.com/teemow/mailcal/internal/tools/common"
)

// RegisterCalendarTools registers all Calendar-related tools with the MCP
// server. Event creation is left out when readOnly is set.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	upcomingTool := mcp.NewTool("calendar_upcoming",
		mcp.WithDescription("List upcoming events of the primary calendar"),
	)
	s.AddTool(upcomingTool, common.InstrumentedToolHandlerWithService("calendar_upcoming", instrumentation.ServiceCalendar, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpcoming(ctx, request, sc)
		}))

	if sc.Meetings() != nil {
		meetingTool := mcp.NewTool("calendar_create_meeting",
			mcp.WithDescription("Create a video meeting link that can be added to an event"),
			mcp.WithString("title",
				mcp.Description("Meeting topic (default: 'Meeting')"),
			),
			mcp.WithString("startTime",
				mcp.Description("Start time (RFC3339 format, e.g., '2025-01-15T14:00:00Z'). Defaults to now."),
			),
			mcp.WithNumber("duration",
				mcp.Description("Duration in minutes (default: 60)"),
			),
		)
		s.AddTool(meetingTool, common.InstrumentedToolHandler("calendar_create_meeting", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleCreateMeeting(ctx, request, sc)
			}))
	}

	if readOnly {
		return nil
	}

	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a new event in the primary calendar"),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title/summary"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339 format, e.g., '2025-01-15T14:00:00Z'), or a date (YYYY-MM-DD) when allDay is set"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (RFC3339 format), or the exclusive end date when allDay is set"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone (e.g., 'Europe/Berlin')"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated list of attendee email addresses"),
		),
		mcp.WithBoolean("allDay",
			mcp.Description("Create as all-day event"),
		),
	)
	s.AddTool(createEventTool, common.InstrumentedToolHandlerWithService("calendar_create_event", instrumentation.ServiceCalendar, instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))

	return nil
}

func handleUpcoming(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	var events []calendar.Event
	if res := common.WithAccess(ctx, sc, []google.Capability{google.CalendarRead}, func(ctx context.Context, tok string) error {
		client, err := sc.CalendarClient(ctx, tok)
		if err != nil {
			return err
		}
		events, err = client.Upcoming(ctx, sc.Now())
		return err
	}); res != nil {
		return res, nil
	}
	if events == nil {
		events = []calendar.Event{}
	}
	return common.JSONResult(map[string]any{"events": events})
}

// eventInput builds the event from the tool arguments.
func eventInput(args map[string]any) calendar.EventInput {
	in := calendar.EventInput{
		Summary:     common.StringArg(args, "summary"),
		Description: common.StringArg(args, "description"),
		Location:    common.StringArg(args, "location"),
		Attendees:   common.ListArg(args, "attendees"),
	}
	start, end := common.StringArg(args, "start"), common.StringArg(args, "end")
	if common.BoolArg(args, "allDay") {
		in.Start = calendar.EventTime{Date: start}
		in.End = calendar.EventTime{Date: end}
		return in
	}
	tz := common.StringArg(args, "timeZone")
	in.Start = calendar.EventTime{DateTime: start, TimeZone: tz}
	in.End = calendar.EventTime{DateTime: end, TimeZone: tz}
	return in
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	in := eventInput(request.GetArguments())
	if err := in.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var event *calendar.Event
	if res := common.WithAccess(ctx, sc, []google.Capability{google.CalendarWrite}, func(ctx context.Context, tok string) error {
		client, err := sc.CalendarClient(ctx, tok)
		if err != nil {
			return err
		}
		event, err = client.CreateEvent(ctx, in)
		return err
	}); res != nil {
		return res, nil
	}
	return common.JSONResult(map[string]any{"success": true, "event": event})
}

func handleCreateMeeting(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	meeting, err := sc.Meetings().CreateMeeting(ctx, calendar.MeetingRequest{
		Title:     common.StringArg(args, "title"),
		StartTime: common.StringArg(args, "startTime"),
		Duration:  common.IntArg(args, "duration"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create meeting: %v", err)), nil
	}
	return common.JSONResult(map[string]any{"success": true, "meeting": meeting})
}
