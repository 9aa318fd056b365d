// FilePath: server/watchdog/internal/notify/template.go
package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/alerting"
)

const DefaultTemplate = `[{{.EventLabel}}] {{.Kind}} on {{.Subject}}
Family: {{.Family}}
Time: {{.At}}
{{- if .Details }}
Details: {{.Details}}
{{- end }}
Notification: {{.ID}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	ID         string
	Event      string
	EventLabel string
	Family     string
	Subject    string
	Kind       string
	At         string
	Details    string
}

// NewTemplateData flattens a notification for rendering.
func NewTemplateData(n alerting.Notification) TemplateData {
	return TemplateData{
		ID:         n.ID,
		Event:      string(n.Type),
		EventLabel: eventLabel(n),
		Family:     n.Family,
		Subject:    n.Subject,
		Kind:       strings.ReplaceAll(n.Kind, "_", " "),
		At:         n.At.UTC().Format(time.RFC3339),
		Details:    details(n.Payload),
	}
}

func eventLabel(n alerting.Notification) string {
	switch n.Type {
	case alerting.EventRaise:
		if n.Reminder {
			return "RESEND"
		}
		return "ALERT"
	case alerting.EventClear:
		return "CLEARED"
	case alerting.EventBadInput:
		return "BAD INPUT"
	}
	return strings.ToUpper(string(n.Type))
}

func details(payload any) string {
	if payload == nil {
		return ""
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%+v", payload)
	}
	return string(b)
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("watchdog-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to a notification.
func (t *Template) Render(n alerting.Notification) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notification template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, NewTemplateData(n)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
