package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rcliao/insight-sync/internal/model"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	mustStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	importantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	niceStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	categoryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("135"))
)

const timeLayout = "2006-01-02 15:04"

func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityMust:
		return mustStyle.Render(string(p))
	case model.PriorityImportant:
		return importantStyle.Render(string(p))
	default:
		return niceStyle.Render(string(p))
	}
}

func renderInsights(insights []model.Insight) string {
	var b strings.Builder
	for _, in := range insights {
		fmt.Fprintf(&b, "%-14s %s", priorityLabel(in.Priority), in.Text)
		if in.Category != "" {
			fmt.Fprintf(&b, "  %s", categoryStyle.Render("["+in.Category+"]"))
		}
		if in.ID != "" {
			fmt.Fprintf(&b, "  %s", idStyle.Render(in.ID))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// renderVersions lists insights with their version; superseded ones are dimmed.
func renderVersions(insights []model.Insight) string {
	superseded := make(map[string]bool)
	for _, in := range insights {
		if in.Supersedes != "" {
			superseded[in.Supersedes] = true
		}
	}
	var b strings.Builder
	for _, in := range insights {
		line := fmt.Sprintf("v%-3d %-14s %s", in.Version, priorityLabel(in.Priority), in.Text)
		if superseded[in.ID] {
			line = dateStyle.Render(fmt.Sprintf("v%-3d %-14s %s (superseded)", in.Version, in.Priority, in.Text))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func renderProfile(p *model.Profile) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Session "+p.SessionID) + "\n")
	fmt.Fprintf(&b, "Completion: %d%%", p.CompletionPercentage)
	if p.ProfileCompleted {
		b.WriteString(" (complete)")
	}
	b.WriteString("\n\n")

	if len(p.Insights) > 0 {
		b.WriteString(headerStyle.Render("Insights") + "\n")
		b.WriteString(renderInsights(p.Insights))
		b.WriteByte('\n')
	}
	if len(p.Messages) > 0 {
		b.WriteString(headerStyle.Render("Messages") + "\n")
		for _, m := range p.Messages {
			fmt.Fprintf(&b, "%s %-9s %s\n", dateStyle.Render(m.CreatedAt.Local().Format(timeLayout)), m.Role+":", m.Content)
		}
	}
	return b.String()
}

func renderSessions(sessions []model.SessionInfo, current string) string {
	if len(sessions) == 0 {
		return "No sessions.\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Sessions") + "\n")
	for _, s := range sessions {
		marker := "  "
		if s.ID == current {
			marker = "* "
		}
		line := marker + idStyle.Render(s.ID) + "  " + dateStyle.Render(s.CreatedAt.Local().Format(timeLayout))
		if s.ExpiresAt != nil {
			line += dateStyle.Render("  expires " + s.ExpiresAt.Local().Format(timeLayout))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
