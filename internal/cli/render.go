// Copyright (c) 2026 EDMS Team
// EDMS - electronic document management system
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/jinkaiteo/edms-sub000/internal/db"
	"github.com/jinkaiteo/edms-sub000/internal/restore"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func statusStyle(s restore.Status) lipgloss.Style {
	switch s {
	case restore.StatusCompleted:
		return okStyle
	case restore.StatusPartial:
		return warnStyle
	case restore.StatusFailed:
		return badStyle
	default:
		return dimStyle
	}
}

func renderStructured(w io.Writer, v any, format string) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return true, enc.Encode(v)
	}
	return false, nil
}

// renderReport prints a session report in the requested format.
func renderReport(w io.Writer, r *restore.Report, format string) error {
	if done, err := renderStructured(w, r, format); done {
		return err
	}

	fmt.Fprintln(w, headerStyle.Render("Restore session "+r.SessionID))
	fmt.Fprintf(w, "  status:       %s\n", statusStyle(r.Status).Render(string(r.Status)))
	fmt.Fprintf(w, "  key format:   %s\n", r.KeyFormat)
	fmt.Fprintf(w, "  scenario:     %s\n", r.Scenario)
	fmt.Fprintf(w, "  records:      %d\n", r.TotalRecords)
	fmt.Fprintf(w, "  completeness: %.1f%%\n", r.Completeness*100)
	if r.RolledBack {
		fmt.Fprintf(w, "  %s\n", badStyle.Render("rolled back: the recorded outcomes did not reach the destination"))
	}

	types := make([]string, 0, len(r.PerType))
	for t := range r.PerType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		counts := r.PerType[t]
		line := fmt.Sprintf("  %-20s", t)
		for _, o := range []restore.Outcome{
			restore.OutcomeCreated, restore.OutcomeLinkedExisting,
			restore.OutcomeRemapped, restore.OutcomeSkipped, restore.OutcomeFailed,
		} {
			if n := counts[o]; n > 0 {
				part := fmt.Sprintf(" %s=%d", o, n)
				switch o {
				case restore.OutcomeSkipped:
					part = warnStyle.Render(part)
				case restore.OutcomeFailed:
					part = badStyle.Render(part)
				}
				line += part
			}
		}
		fmt.Fprintln(w, line)
	}

	for _, rec := range r.Records {
		if rec.Outcome != restore.OutcomeSkipped && rec.Outcome != restore.OutcomeFailed && !rec.Partial {
			continue
		}
		fmt.Fprintf(w, "  %s %s: %s %s\n",
			dimStyle.Render("-"), rec.ModelType+"["+joinKey(rec.NaturalKey)+"]",
			rec.Outcome, dimStyle.Render(rec.Detail))
	}

	if r.Validation != nil {
		fmt.Fprintln(w)
		if err := renderValidation(w, r.Validation, format); err != nil {
			return err
		}
	}
	return nil
}

// renderValidation prints the integrity report.
func renderValidation(w io.Writer, v *restore.Validation, format string) error {
	if done, err := renderStructured(w, v, format); done {
		return err
	}

	fmt.Fprintln(w, headerStyle.Render("Integrity"))
	fmt.Fprintf(w, "  artifacts checked: %d\n", v.ArtifactsChecked)
	if v.Clean {
		fmt.Fprintf(w, "  %s\n", okStyle.Render("clean"))
		return nil
	}
	for _, c := range v.ChecksumIssues {
		if c.Missing {
			fmt.Fprintf(w, "  %s %s v%d: artifact %s missing\n", badStyle.Render("!"), c.DocumentNumber, c.Seq, c.Path)
			continue
		}
		fmt.Fprintf(w, "  %s %s v%d: checksum mismatch on %s\n", badStyle.Render("!"), c.DocumentNumber, c.Seq, c.Path)
	}
	for _, d := range v.DanglingRefs {
		fmt.Fprintf(w, "  %s %s.%s dangles (row %s)\n", badStyle.Render("!"), d.Table, d.Column, d.RowKey)
	}
	return nil
}

// renderSessions prints the session list.
func renderSessions(w io.Writer, rows []db.RestoreSessionModel, format string) error {
	if done, err := renderStructured(w, rows, format); done {
		return err
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no restore sessions recorded"))
		return nil
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-36s  %-20s  %-8s  %-8s  %s", "ID", "STATUS", "FORMAT", "SCENARIO", "STARTED")))
	for _, m := range rows {
		fmt.Fprintf(w, "%-36s  %-20s  %-8s  %-8s  %s\n",
			m.ID,
			statusStyle(restore.Status(m.Status)).Render(fmt.Sprintf("%-20s", m.Status)),
			m.KeyFormat, m.Scenario,
			m.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func joinKey(key []string) string {
	out := ""
	for i, k := range key {
		if i > 0 {
			out += "/"
		}
		out += k
	}
	return out
}
