package format

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"appointment-checker/internal/core/notify"
)

//go:embed "templates"
var templateFS embed.FS

const TimestampLayout = "2006-01-02 15:04:05"

var htmlTemplate = template.Must(template.New("email").ParseFS(templateFS, "templates/appointment.tmpl"))

// Rendered holds both bodies of a notification. Plain is the body verbatim.
type Rendered struct {
	Subject string
	Plain   string
	HTML    string
}

type htmlData struct {
	Heading   string
	Lines     []string
	Timestamp string
	Link      string
}

func Render(n notify.Notification) (Rendered, error) {
	body := strings.ReplaceAll(n.Body, "\r\n", "\n")
	data := htmlData{
		Heading:   n.Subject,
		Lines:     strings.Split(body, "\n"),
		Timestamp: n.Timestamp.Format(TimestampLayout),
		Link:      n.Link,
	}

	var html bytes.Buffer
	if err := htmlTemplate.ExecuteTemplate(&html, "htmlBody", data); err != nil {
		return Rendered{}, err
	}
	return Rendered{
		Subject: n.Subject,
		Plain:   n.Body,
		HTML:    html.String(),
	}, nil
}

// Excerpt trims s to at most n runes for channels with size limits.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "\n...(truncated)"
}
