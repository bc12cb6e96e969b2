package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/garyjia/caseflow/internal/domain/entity"
)

func (a *cli) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *cli) newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(a.out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func (a *cli) printCases(cases []*entity.Case) error {
	if a.v.GetBool("json") {
		return a.printJSON(cases)
	}
	tw := a.newTable(table.Row{"ID", "Title", "Status", "Priority", "Assignee", "Creator", "Updated"})
	for _, c := range cases {
		tw.AppendRow(table.Row{c.ID, c.Title, c.Status, c.Priority, c.Assignee(), c.CreatorID, formatTime(c.UpdatedAt)})
	}
	tw.Render()
	return nil
}

func (a *cli) printCase(c *entity.Case) error {
	if a.v.GetBool("json") {
		return a.printJSON(c)
	}
	tw := a.newTable(table.Row{"Field", "Value"})
	tw.AppendRows([]table.Row{
		{"ID", c.ID},
		{"Title", c.Title},
		{"Description", c.Description},
		{"Status", c.Status},
		{"Priority", c.Priority},
		{"Assignee", c.Assignee()},
		{"Creator", c.CreatorID},
		{"Version", c.Version},
		{"Created", formatTime(c.CreatedAt)},
		{"Updated", formatTime(c.UpdatedAt)},
	})
	if c.DueDate != nil {
		tw.AppendRow(table.Row{"Due", c.DueDate.Format("2006-01-02")})
	}
	for k, v := range c.Metadata {
		tw.AppendRow(table.Row{"meta." + k, v})
	}
	tw.Render()
	return nil
}

func (a *cli) printHistory(logs []*entity.CaseLog) error {
	if a.v.GetBool("json") {
		return a.printJSON(logs)
	}
	tw := a.newTable(table.Row{"#", "When", "Actor", "Action", "From", "To", "Details"})
	for _, l := range logs {
		tw.AppendRow(table.Row{l.ID, formatTime(l.Timestamp), l.ActorID, l.Action, l.FromStatus, l.ToStatus, l.Details})
	}
	tw.Render()
	return nil
}

func (a *cli) printUsers(users []*entity.User) error {
	if a.v.GetBool("json") {
		return a.printJSON(users)
	}
	tw := a.newTable(table.Row{"ID", "Name", "Role", "Email", "Active"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.DisplayName, u.Role, u.Email, u.Active})
	}
	tw.Render()
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func (a *cli) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
