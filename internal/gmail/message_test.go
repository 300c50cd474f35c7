package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"
)

func TestEmailFromMessage_NestedParts(t *testing.T) {
	m := &gmail.Message{
		Id: "m1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers:  []*gmail.MessagePartHeader{{Name: "Subject", Value: "nested"}},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("deep text"))}},
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<b>deep</b>"))}},
					},
				},
				{MimeType: "application/pdf", Filename: "a.pdf", Body: &gmail.MessagePartBody{AttachmentId: "att-1"}},
			},
		},
	}

	e := emailFromMessage(m)
	assert.Equal(t, "nested", e.Subject)
	assert.Equal(t, "deep text", e.Body)
	assert.Equal(t, "<b>deep</b>", e.HTML)
	assert.True(t, e.HasAttachments)
	assert.Equal(t, []string{}, e.Labels)
}

func TestEmailFromMessage_SinglePart(t *testing.T) {
	m := &gmail.Message{
		Id: "m2",
		Payload: &gmail.MessagePart{
			MimeType: "text/html",
			Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<i>only html</i>"))},
		},
	}
	e := emailFromMessage(m)
	assert.Empty(t, e.Body)
	assert.Equal(t, "<i>only html</i>", e.HTML)
}

func TestEmailFromMessage_NoPayload(t *testing.T) {
	e := emailFromMessage(&gmail.Message{Id: "m3", Snippet: "s"})
	assert.Equal(t, "m3", e.ID)
	assert.Equal(t, "s", e.Snippet)
}

func TestSearchQuery_String(t *testing.T) {
	after := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		q    SearchQuery
		want string
	}{
		{name: "empty", q: SearchQuery{}, want: ""},
		{name: "text", q: SearchQuery{Query: "  from:alice  "}, want: "from:alice"},
		{name: "dates", q: SearchQuery{After: &after, Before: &before}, want: "after:2026/01/02 before:2026/02/03"},
		{name: "all", q: SearchQuery{Query: "report", After: &after, HasAttachments: true}, want: "report after:2026/01/02 has:attachment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.String())
		})
	}
}

func TestOutgoingMessage_Validate(t *testing.T) {
	ok := OutgoingMessage{To: []string{"a@example.com"}, Subject: "s", Body: "b"}
	assert.NoError(t, ok.Validate())

	injected := ok
	injected.Subject = "s\r\nBcc: evil@example.com"
	assert.Error(t, injected.Validate())

	badRcpt := ok
	badRcpt.To = []string{"a@example.com\nBcc: x"}
	assert.Error(t, badRcpt.Validate())
}
