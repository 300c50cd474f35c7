package gmail

import (
	"encoding/base64"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// emailFromMessage extracts headers and bodies from a message fetched with format=full.
func emailFromMessage(m *gmail.Message) Email {
	e := Email{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Snippet:  m.Snippet,
		Labels:   m.LabelIds,
	}
	if e.Labels == nil {
		e.Labels = []string{}
	}
	if m.Payload == nil {
		return e
	}

	e.Subject = header(m.Payload, "Subject")
	e.From = header(m.Payload, "From")
	e.To = header(m.Payload, "To")
	e.Date = header(m.Payload, "Date")

	walkParts(m.Payload, func(p *gmail.MessagePart) {
		if p.Filename != "" && p.Body != nil && p.Body.AttachmentId != "" {
			e.HasAttachments = true
			return
		}
		if p.Body == nil || p.Body.Data == "" {
			return
		}
		switch p.MimeType {
		case "text/plain":
			if e.Body == "" {
				e.Body = decodeBody(p.Body.Data)
			}
		case "text/html":
			if e.HTML == "" {
				e.HTML = decodeBody(p.Body.Data)
			}
		}
	})
	return e
}

// header returns the first header called name, matched case-insensitively.
func header(p *gmail.MessagePart, name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// walkParts visits p and all nested parts depth first.
func walkParts(p *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if p == nil {
		return
	}
	fn(p)
	for _, child := range p.Parts {
		walkParts(child, fn)
	}
}

// decodeBody decodes base64url body data, with or without padding.
// Undecodable data yields an empty string.
func decodeBody(data string) string {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return string(decoded)
		}
	}
	return ""
}
