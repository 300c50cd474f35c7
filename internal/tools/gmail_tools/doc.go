// Package gmail_tools provides MCP tools for reading, searching, sending and
// summarizing Gmail messages.
//
// Tools:
//   - gmail_recent: the most recent inbox messages
//   - gmail_search: messages matching a Gmail query and date range
//   - gmail_send: send a plain text or HTML message
//   - gmail_summarize: a short summary of an email's content
//
// Every tool acts for the browser session of the MCP request. When the
// session has not granted the needed Gmail capability the tool returns an
// error carrying the consent URL.
package gmail_tools
