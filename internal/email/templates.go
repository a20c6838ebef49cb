package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const subjectReentryFmt = "Lead voltou: %s"

type baseEmailData struct {
	Title    string
	Heading  string
	CTALabel string
	CTAURL   string
}

type reentryAlertEmailData struct {
	baseEmailData
	LeadName   string
	Channel    string
	ReceivedAt string
}

// ReentrySubject is the subject line of a reentry alert.
func ReentrySubject(leadName string) string {
	return fmt.Sprintf(subjectReentryFmt, leadName)
}

func renderReentryAlert(alert ReentryAlert) (string, error) {
	data := reentryAlertEmailData{
		baseEmailData: baseEmailData{
			Title:   "Lead voltou",
			Heading: "Um lead conhecido entrou em contato novamente",
		},
		LeadName: alert.LeadName,
		Channel:  alert.Channel,
	}
	if !alert.ReceivedAt.IsZero() {
		data.ReceivedAt = alert.ReceivedAt.Format("02/01/2006 15:04")
	}
	if alert.LeadURL != "" {
		data.CTALabel = "Abrir lead"
		data.CTAURL = alert.LeadURL
	}
	return renderEmailTemplate("reentry_alert.html", data)
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
