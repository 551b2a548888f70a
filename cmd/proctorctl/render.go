package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func clock(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("15:04:05")
}

func renderParticipants(w io.Writer, ps []participant) {
	table := newTable(w, "ID", "Name", "State", "Lock", "Score", "Warnings", "Violations", "Online", "Last seen")
	for _, p := range ps {
		lock := p.Lock
		if lock == "LOCKED" {
			lock = color.Red.Sprint(lock)
		}
		online := color.Gray.Sprint("no")
		if p.Connected {
			online = color.Green.Sprint("yes")
		}
		table.Append([]string{
			p.ID,
			p.Name,
			p.State,
			lock,
			scoreColor(p.IntegrityScore),
			strconv.Itoa(p.WarningCount),
			strconv.Itoa(p.ViolationCount),
			online,
			clock(p.LastSeen),
		})
	}
	table.Render()
}

func scoreColor(score float64) string {
	s := strconv.FormatFloat(score, 'f', 1, 64)
	switch {
	case score < 50:
		return color.Red.Sprint(s)
	case score < 80:
		return color.Yellow.Sprint(s)
	default:
		return color.Green.Sprint(s)
	}
}

func renderViolations(w io.Writer, vs []violation) {
	table := newTable(w, "Time", "Participant", "Type", "Severity", "Description")
	for _, v := range vs {
		severity := v.Severity
		if severity == "high" || severity == "critical" {
			severity = color.Red.Sprint(severity)
		}
		table.Append([]string{clock(&v.Timestamp), v.ParticipantID, v.Type, severity, v.Description})
	}
	table.Render()
}

func renderPermissions(w io.Writer, ps []permission) {
	table := newTable(w, "ID", "Participant", "Type", "Status", "Minutes", "Reason", "Requested", "Expires")
	for _, p := range ps {
		status := p.Status
		switch {
		case p.Active:
			status = color.Cyan.Sprint(status + " (active)")
		case status == "PENDING":
			status = color.Yellow.Sprint(status)
		}
		table.Append([]string{
			p.ID, p.ParticipantID, p.RequestType, status,
			strconv.Itoa(p.DurationMinutes), p.Reason,
			clock(&p.RequestedAt), clock(p.ExpiresAt),
		})
	}
	table.Render()
}

func renderExam(w io.Writer, e exam) {
	fmt.Fprintf(w, "%s #%d %q started %s ended %s\n",
		color.Bold.Sprint(e.Status), e.ID, e.Name, clock(&e.StartTime), clock(e.EndTime))
}

func renderEscalation(w io.Writer, e escalation) {
	mode := color.Yellow.Sprint("manual")
	if e.AutoEscalation {
		mode = color.Green.Sprint("auto")
	}
	fmt.Fprintf(w, "escalation %s, flag after %d warnings, lock after %d\n", mode, e.FlagThreshold, e.LockThreshold)
}

// renderMap prints a flat object as sorted key/value rows.
func renderMap(w io.Writer, m map[string]any) {
	keys := lo.Keys(m)
	sort.Strings(keys)
	table := newTable(w, "Key", "Value")
	for _, k := range keys {
		table.Append([]string{k, fmt.Sprint(m[k])})
	}
	table.Render()
}
