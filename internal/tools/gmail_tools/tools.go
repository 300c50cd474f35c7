package gmail_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailcal/internal/gmail"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/server"
	"github.com/teemow/mailcal/internal/summarize"
	"github.com/teemow/mailcal/internal/tools/common"
)

// RegisterGmailTools registers all Gmail-related tools with the MCP server.
// Send is left out when readOnly is set.
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	recentTool := mcp.NewTool("gmail_recent",
		mcp.WithDescription("List the most recent messages in the inbox"),
	)
	s.AddTool(recentTool, common.InstrumentedToolHandlerWithService("gmail_recent", instrumentation.ServiceGmail, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRecent(ctx, request, sc)
		}))

	searchTool := mcp.NewTool("gmail_search",
		mcp.WithDescription("Search messages using Gmail search syntax and an optional date range"),
		mcp.WithString("query",
			mcp.Description("Gmail search query (e.g., 'from:alice subject:invoice')"),
		),
		mcp.WithString("after",
			mcp.Description("Only messages after this date (YYYY-MM-DD)"),
		),
		mcp.WithString("before",
			mcp.Description("Only messages before this date (YYYY-MM-DD)"),
		),
		mcp.WithBoolean("hasAttachments",
			mcp.Description("Only messages with attachments"),
		),
	)
	s.AddTool(searchTool, common.InstrumentedToolHandlerWithService("gmail_search", instrumentation.ServiceGmail, instrumentation.OperationSearch, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearch(ctx, request, sc)
		}))

	summarizeTool := mcp.NewTool("gmail_summarize",
		mcp.WithDescription("Summarize an email in a few words"),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject"),
		),
		mcp.WithString("from",
			mcp.Description("Sender"),
		),
		mcp.WithString("body",
			mcp.Description("Email body or snippet"),
		),
	)
	s.AddTool(summarizeTool, common.InstrumentedToolHandler("gmail_summarize", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSummarize(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	sendTool := mcp.NewTool("gmail_send",
		mcp.WithDescription("Send an email"),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Comma-separated list of recipient email addresses"),
		),
		mcp.WithString("cc",
			mcp.Description("Comma-separated list of CC recipients"),
		),
		mcp.WithString("bcc",
			mcp.Description("Comma-separated list of BCC recipients"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Email body (plain text or HTML)"),
		),
		mcp.WithBoolean("isHTML",
			mcp.Description("Whether the body is HTML (default: false)"),
		),
	)
	s.AddTool(sendTool, common.InstrumentedToolHandlerWithService("gmail_send", instrumentation.ServiceGmail, instrumentation.OperationSend, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSend(ctx, request, sc)
		}))

	return nil
}

func handleRecent(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	var emails []gmail.Email
	if res := common.WithAccess(ctx, sc, []google.Capability{google.GmailRead}, func(ctx context.Context, tok string) error {
		client, err := sc.GmailClient(ctx, tok)
		if err != nil {
			return err
		}
		emails, err = client.Recent(ctx)
		return err
	}); res != nil {
		return res, nil
	}
	return common.JSONResult(map[string]any{"emails": nonNil(emails)})
}

func handleSearch(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	q := gmail.SearchQuery{
		Query:          common.StringArg(args, "query"),
		HasAttachments: common.BoolArg(args, "hasAttachments"),
	}
	var err error
	if q.After, err = dateArg(args, "after"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Before, err = dateArg(args, "before"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.String() == "" {
		return mcp.NewToolResultError("at least one of query, after, before or hasAttachments is required"), nil
	}

	var emails []gmail.Email
	if res := common.WithAccess(ctx, sc, []google.Capability{google.GmailRead}, func(ctx context.Context, tok string) error {
		client, err := sc.GmailClient(ctx, tok)
		if err != nil {
			return err
		}
		emails, err = client.Search(ctx, q)
		return err
	}); res != nil {
		return res, nil
	}
	return common.JSONResult(map[string]any{"emails": nonNil(emails)})
}

func handleSend(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	msg := &gmail.OutgoingMessage{
		To:      common.ListArg(args, "to"),
		Cc:      common.ListArg(args, "cc"),
		Bcc:     common.ListArg(args, "bcc"),
		Subject: common.StringArg(args, "subject"),
		Body:    common.StringArg(args, "body"),
		IsHTML:  common.BoolArg(args, "isHTML"),
	}
	if err := msg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var id string
	if res := common.WithAccess(ctx, sc, []google.Capability{google.GmailSend}, func(ctx context.Context, tok string) error {
		client, err := sc.GmailClient(ctx, tok)
		if err != nil {
			return err
		}
		id, err = client.Send(ctx, msg)
		return err
	}); res != nil {
		return res, nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Email sent successfully!\nMessage ID: %s\nSubject: %s", id, msg.Subject)), nil
}

func handleSummarize(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	summary, err := sc.Summarizer().Summarize(ctx, summarize.Email{
		Subject: common.StringArg(args, "subject"),
		From:    common.StringArg(args, "from"),
		Body:    common.StringArg(args, "body"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to summarize email: %v", err)), nil
	}
	return common.JSONResult(summary)
}

func dateArg(args map[string]any, key string) (*time.Time, error) {
	s := common.StringArg(args, key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD)", key)
	}
	return &t, nil
}

func nonNil(emails []gmail.Email) []gmail.Email {
	if emails == nil {
		return []gmail.Email{}
	}
	return emails
}
