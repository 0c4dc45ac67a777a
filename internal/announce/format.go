package announce

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/propagate"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// statusVerb returns a human-friendly verb for a status transition.
func statusVerb(from, to models.Status) string {
	switch to {
	case models.StatusPending:
		if from == models.StatusCompleted || from == models.StatusInProgress {
			return "reopened"
		}
		return "is pending"
	case models.StatusInProgress:
		if from == models.StatusCompleted {
			return "reopened"
		}
		return "started"
	case models.StatusCompleted:
		return "completed"
	case models.StatusCancelled:
		return "cancelled"
	}
	return string(to)
}

// statusSeverity returns the severity for a transition into status.
func statusSeverity(from, to models.Status) string {
	switch to {
	case models.StatusCompleted:
		return "success"
	case models.StatusPending, models.StatusInProgress:
		if from == models.StatusCompleted {
			return "warning"
		}
		return "info"
	case models.StatusCancelled:
		return "warning"
	}
	return "info"
}

func formatTransition(kind string, c propagate.Change, extra ...Field) FormattedEvent {
	severity := statusSeverity(c.OldStatus, c.NewStatus)
	title := fmt.Sprintf("%s %s %s", kind, c.Title, statusVerb(c.OldStatus, c.NewStatus))

	var bodyParts []string
	if c.OldStatus != "" {
		bodyParts = append(bodyParts, fmt.Sprintf("%s → %s", c.OldStatus.Label(), c.NewStatus.Label()))
	}
	bodyParts = append(bodyParts, fmt.Sprintf("Progress: %d%% → %d%%", c.OldProgress, c.NewProgress))

	fields := []Field{
		{Name: "Status", Value: c.NewStatus.Label(), Short: true},
		{Name: "Progress", Value: fmt.Sprintf("%d%%", c.NewProgress), Short: true},
	}
	fields = append(fields, extra...)

	return FormattedEvent{
		Title:    title,
		Body:     strings.Join(bodyParts, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// FormatStageTransition formats a stage status change. projectTitle names
// the owning project when known.
func FormatStageTransition(c propagate.Change, projectTitle string) FormattedEvent {
	var extra []Field
	if projectTitle != "" {
		extra = append(extra, Field{Name: "Project", Value: projectTitle, Short: true})
	}
	return formatTransition("Stage", c, extra...)
}

// FormatProjectTransition formats a project status change.
func FormatProjectTransition(c propagate.Change) FormattedEvent {
	return formatTransition("Project", c)
}

// ShareText is the plain-text summary of a project for pasting anywhere.
func ShareText(p models.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", p.Title)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(&b, "Status: %s\n", p.Status.Label())
	fmt.Fprintf(&b, "Progress: %d%%", p.Progress)
	return b.String()
}

// ProjectLink returns the dashboard URL of a project.
func ProjectLink(baseURL, projectID string) string {
	return strings.TrimRight(baseURL, "/") + "/projects/" + url.PathEscape(projectID)
}

// WhatsAppMessage is the stage update a manager sends to a client.
func WhatsAppMessage(projectTitle, stageTitle, link string) string {
	return fmt.Sprintf(`Hello! 👋

Here is an update on the project "%s".

📋 Stage: %s

You can follow the full progress at:
%s

Let me know if you have any questions!`, projectTitle, stageTitle, link)
}

// WhatsAppURL returns a wa.me link with message prefilled. Non-digits are
// stripped from phone; an empty phone lets the sender pick the contact.
func WhatsAppURL(phone, message string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return "https://wa.me/" + digits + "?" + url.Values{"text": {message}}.Encode()
}
