package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailcal/internal/gate"
	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/instrumentation"
	"github.com/teemow/mailcal/internal/server"
	"github.com/teemow/mailcal/internal/tools/tooltest"
)

func auditedContext(t *testing.T, buf *bytes.Buffer) *server.ServerContext {
	t.Helper()
	env := tooltest.NewEnv(t)
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	sc, err := server.NewServerContext(context.Background(), server.ContextConfig{
		Gate:  env.Context.Gate(),
		Audit: instrumentation.NewAuditLogger(logger, instrumentation.AuditLoggingConfig{Enabled: true}),
	})
	require.NoError(t, err)
	return sc
}

func TestInstrumentedToolHandler_Success(t *testing.T) {
	var buf bytes.Buffer
	sc := auditedContext(t, &buf)

	called := false
	wrapped := InstrumentedToolHandler("test_tool", sc, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("success"), nil
	})

	result, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, result.IsError)
	assert.Contains(t, buf.String(), `"tool":"test_tool"`)
	assert.Contains(t, buf.String(), `"success":true`)
}

func TestInstrumentedToolHandler_Error(t *testing.T) {
	var buf bytes.Buffer
	sc := auditedContext(t, &buf)

	expectedErr := errors.New("test error")
	wrapped := InstrumentedToolHandler("test_tool", sc, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, expectedErr
	})

	_, err := wrapped(context.Background(), mcp.CallToolRequest{})
	assert.ErrorIs(t, err, expectedErr)
	assert.Contains(t, buf.String(), `"success":false`)
	assert.Contains(t, buf.String(), "test error")
}

func TestInstrumentedToolHandler_ErrorResult(t *testing.T) {
	var buf bytes.Buffer
	sc := auditedContext(t, &buf)

	wrapped := InstrumentedToolHandlerWithService("test_tool", "gmail", instrumentation.OperationList, sc, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("nope"), nil
	})

	ctx := server.WithSessionID(context.Background(), "session-1")
	result, err := wrapped(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, buf.String(), `"success":false`)
	assert.Contains(t, buf.String(), `"service":"gmail"`)
}

func TestInstrumentedToolHandler_WithMetrics(t *testing.T) {
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		Enabled:         true,
		ServiceName:     "test",
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	env := tooltest.NewEnv(t)
	sc, err := server.NewServerContext(context.Background(), server.ContextConfig{
		Gate:    env.Context.Gate(),
		Metrics: provider.Metrics(),
	})
	require.NoError(t, err)

	wrapped := InstrumentedToolHandlerWithService("test_tool", "calendar", instrumentation.OperationCreate, sc, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	})
	result, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestWithAccess(t *testing.T) {
	env := tooltest.NewEnv(t)
	caps := []google.Capability{google.GmailRead}

	t.Run("no session", func(t *testing.T) {
		result := WithAccess(context.Background(), env.Context, caps, func(context.Context, string) error {
			t.Fatal("must not run")
			return nil
		})
		require.NotNil(t, result)
		assert.True(t, result.IsError)
		assert.Equal(t, noSessionMessage, tooltest.Text(t, result))
	})

	t.Run("needs consent", func(t *testing.T) {
		result := WithAccess(env.Session(), env.Context, caps, func(context.Context, string) error {
			t.Fatal("must not run")
			return nil
		})
		require.NotNil(t, result)
		assert.True(t, result.IsError)
		text := tooltest.Text(t, result)
		assert.Contains(t, text, string(gate.ReasonNeedsAuth))
		assert.Contains(t, text, tooltest.StartURL+"?capabilities=gmail.read")
	})

	t.Run("ready", func(t *testing.T) {
		var got string
		result := WithAccess(env.Connect(t, google.GmailRead), env.Context, caps, func(_ context.Context, tok string) error {
			got = tok
			return nil
		})
		assert.Nil(t, result)
		assert.Equal(t, "ya29.tool", got)
	})

	t.Run("rejected by google", func(t *testing.T) {
		result := WithAccess(env.Connect(t, google.GmailRead), env.Context, caps, func(context.Context, string) error {
			return google.ErrConsentRequired
		})
		require.NotNil(t, result)
		assert.Contains(t, tooltest.Text(t, result), string(gate.ReasonInvalidToken))
		assert.Contains(t, tooltest.Text(t, result), "force=true")
	})

	t.Run("api error", func(t *testing.T) {
		result := WithAccess(env.Connect(t, google.GmailRead), env.Context, caps, func(context.Context, string) error {
			return errors.New("boom")
		})
		require.NotNil(t, result)
		assert.Contains(t, tooltest.Text(t, result), "boom")
	})
}

func TestArgs(t *testing.T) {
	args := map[string]any{
		"query":    "  from:alice ",
		"html":     true,
		"duration": float64(45),
		"to":       "a@example.com, ,b@example.com",
	}
	assert.Equal(t, "from:alice", StringArg(args, "query"))
	assert.Equal(t, "", StringArg(args, "missing"))
	assert.True(t, BoolArg(args, "html"))
	assert.False(t, BoolArg(args, "query"))
	assert.Equal(t, 45, IntArg(args, "duration"))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, ListArg(args, "to"))
	assert.Equal(t, []string{"c@example.com"}, ListArg(map[string]any{"to": []any{"c@example.com", "", 7}}, "to"))
	assert.Nil(t, ListArg(args, "missing"))
}

func TestJSONResult(t *testing.T) {
	result, err := JSONResult(map[string]int{"count": 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2}`, tooltest.Text(t, result))
}
