// Package notify delivers account emails. Senders are swappable behind
// Notifier; Dispatcher runs delivery off the request path.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// TemplateVerifyEmail is the verification link email.
const TemplateVerifyEmail = "verify_email.html"

// SubjectVerifyEmail is the subject line of the verification email.
const SubjectVerifyEmail = "Confirm your email"

// Message is a templated email addressed to one recipient.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     any
}

// VerifyEmailData feeds TemplateVerifyEmail.
type VerifyEmailData struct {
	URL string
}

// Notifier sends a message. Implementations must honour ctx cancellation.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

func lookup(name string) (*template.Template, error) {
	t := templates.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	return t, nil
}

// Render executes the message template into HTML.
func Render(msg Message) (string, error) {
	t, err := lookup(msg.Template)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, msg.Data); err != nil {
		return "", fmt.Errorf("render %s: %w", msg.Template, err)
	}
	return buf.String(), nil
}
