package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	subjectLeadAssigned = "New lead assigned to you"
	subjectSweepReport  = "Reconciliation sweep report"
)

// LeadAssignedData fills the lead-assigned notification template.
type LeadAssignedData struct {
	AgentName   string
	LeadName    string
	PhoneNumber string
	Source      string
}

// SweepReportData fills the sweep report template.
type SweepReportData struct {
	FixesApplied []string
	Errors       []string
	TriggeredBy  string
}

func renderEmailTemplate(name string, data any) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template %s: %w", name, err)
	}
	return buf.String(), nil
}
