// Package summarize produces very short email summaries for the dashboard.
//
// Summaries come from the Gemini generateContent API when an API key is
// configured. Without a key, or when the call fails, a rule-based summary is
// derived from the subject line. A Summary records which of the two produced
// it.
package summarize
