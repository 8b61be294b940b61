// Package report renders the analysis and overview views as terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/modelservice"
	"github.com/starford/threatmap/internal/session"
)

var (
	colorBorder = lipgloss.Color("#16858E")
	colorTitle  = lipgloss.Color("#2CD7C7")
	colorMuted  = lipgloss.Color("#2C4A54")

	severityColors = map[models.Severity]lipgloss.Color{
		models.SeverityCritical: lipgloss.Color("#E74C3C"),
		models.SeverityHigh:     lipgloss.Color("#F39C12"),
		models.SeverityMedium:   lipgloss.Color("#F4D03F"),
		models.SeverityLow:      lipgloss.Color("#2ECC71"),
	}
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorTitle).MarginTop(1)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func severity(s models.Severity) string {
	c, ok := severityColors[s]
	if !ok {
		return string(s)
	}
	return lipgloss.NewStyle().Foreground(c).Render(string(s))
}

func counts(title string, cs []session.Count) string {
	t := newTable(title, "Count")
	for _, c := range cs {
		t.Row(c.Key, strconv.Itoa(c.Count))
	}
	return t.String()
}

// Analysis writes the summary, the selected-threat table, the distribution
// tables and the coverage matrix. iteration is shown in the heading when set.
func Analysis(w io.Writer, a session.Analysis, iteration string) error {
	var b strings.Builder

	heading := "Threat analysis"
	if iteration != "" {
		heading += " · " + iteration
	}
	b.WriteString(titleStyle.Render(heading) + "\n")

	if a.Summary.TotalThreats == 0 {
		b.WriteString(mutedStyle.Render("No threats selected.") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	s := a.Summary
	summary := newTable("Threats", "Critical", "Mitigations", "Implemented", "Completion")
	summary.Row(
		strconv.Itoa(s.TotalThreats),
		fmt.Sprintf("%d (%s)", s.CriticalThreats, pct(s.CriticalShare)),
		strconv.Itoa(s.TotalMitigations),
		strconv.Itoa(s.ImplementedMitigations),
		pct(s.CompletionRate),
	)
	b.WriteString(summary.String() + "\n")

	b.WriteString(titleStyle.Render("Selected threats") + "\n")
	threats := newTable("ID", "Name", "Severity", "Domain", "Mitigations", "Implemented", "Coverage")
	for _, r := range a.Threats {
		threats.Row(r.ID, r.Name, severity(r.Severity), r.Domain,
			strconv.Itoa(r.TotalMitigations), strconv.Itoa(r.Implemented), pct(r.Coverage))
	}
	b.WriteString(threats.String() + "\n")

	b.WriteString(titleStyle.Render("Distribution") + "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		counts("Severity", a.BySeverity), " ",
		counts("Threat domain", a.ByThreatDomain), " ",
		counts("Status", a.ByStatus), " ",
		counts("Mitigation domain", a.ByMitigationDomain),
	) + "\n")

	b.WriteString(titleStyle.Render("Risk coverage") + "\n")
	cov := newTable("Threat", "Total", "Implemented", "In Progress", "Planned", "Coverage")
	for _, r := range a.Coverage {
		cov.Row(r.ThreatID, strconv.Itoa(r.Total), strconv.Itoa(r.Implemented),
			strconv.Itoa(r.InProgress), strconv.Itoa(r.Planned), pct(r.Coverage))
	}
	b.WriteString(cov.String() + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// Overview writes the store totals and the most recent iterations.
func Overview(w io.Writer, ov modelservice.Overview) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Threat model overview") + "\n")
	totals := newTable("Threats", "Mitigations", "Iterations")
	totals.Row(strconv.Itoa(ov.TotalThreats), strconv.Itoa(ov.TotalMitigations), strconv.Itoa(ov.TotalIterations))
	b.WriteString(totals.String() + "\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		counts("Severity", ov.ThreatsBySeverity), " ",
		counts("Status", ov.MitigationsByStatus),
	) + "\n")

	if len(ov.RecentIterations) > 0 {
		b.WriteString(titleStyle.Render("Recent iterations") + "\n")
		its := newTable("Name", "Description", "Created")
		for _, it := range ov.RecentIterations {
			its.Row(it.Name, it.Description, it.CreatedDate.Format("2006-01-02 15:04"))
		}
		b.WriteString(its.String() + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
