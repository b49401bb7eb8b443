// ABOUTME: HTML transcript export for a conversation
// ABOUTME: Renders each message body as Markdown with goldmark inside an html/template page

package gateway

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/yuin/goldmark"

	"github.com/2389/huddle/internal/conversation"
)

//go:embed templates/transcript.html
var templateFS embed.FS

var transcriptTemplate = template.Must(template.ParseFS(templateFS, "templates/transcript.html"))

type transcriptMessage struct {
	ID     int64
	Sender string
	SentAt string
	Body   template.HTML
}

type transcriptPage struct {
	Title    string
	Messages []transcriptMessage
}

// handleTranscript handles GET /api/conversations/{id}/transcript.
func (g *Gateway) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := g.conversationIDParam(w, r)
	if !ok {
		return
	}

	conv, err := g.conversation.GetConversation(r.Context(), id)
	if err != nil {
		g.writeServiceError(w, err)
		return
	}
	views, err := g.conversation.ListConversation(r.Context(), id)
	if err != nil {
		g.writeServiceError(w, err)
		return
	}

	page := transcriptPage{
		Title:    conv.Title,
		Messages: lo.Map(views, func(v *conversation.MessageView, _ int) transcriptMessage { return g.renderTranscriptMessage(v) }),
	}

	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, page); err != nil {
		g.logger.Error("failed to render transcript", "conversation_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// renderTranscriptMessage converts one message to HTML. goldmark drops raw
// HTML in the source unless the unsafe renderer option is set.
func (g *Gateway) renderTranscriptMessage(v *conversation.MessageView) transcriptMessage {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(v.Content), &body); err != nil {
		g.logger.Warn("failed to convert markdown", "message_id", v.ID, "error", err)
		body.Reset()
		body.WriteString("<pre>" + template.HTMLEscapeString(v.Content) + "</pre>")
	}

	sender := v.SenderName
	if sender == "" {
		sender = "unknown"
	}
	return transcriptMessage{
		ID:     v.ID,
		Sender: sender,
		SentAt: v.SentAt.UTC().Format(time.RFC3339),
		Body:   template.HTML(body.String()),
	}
}
