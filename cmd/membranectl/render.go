// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/libertaria/membrane/lib/agent"
	"github.com/libertaria/membrane/lib/alert"
	"github.com/libertaria/membrane/lib/policy"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AFAFFF"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))

	priorityStyles = map[alert.Priority]lipgloss.Style{
		alert.Critical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F")),
		alert.Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")),
		alert.Info:     lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")),
	}

	decisionStyles = map[policy.Decision]lipgloss.Style{
		policy.Drop:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F")),
		policy.Deprioritize: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")),
		policy.Accept:       lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")),
		policy.Neutral:      mutedStyle,
	}
)

func renderPriority(p alert.Priority) string {
	label := fmt.Sprintf("%-8s", p)
	if style, ok := priorityStyles[p]; ok {
		return style.Render(label)
	}
	return label
}

func renderDecision(d policy.Decision) string {
	if style, ok := decisionStyles[d]; ok {
		return style.Render(d.String())
	}
	return d.String()
}

func renderAlert(w io.Writer, a alert.Alert) {
	fmt.Fprintf(w, "%6d  %s  %s  node %-6d score %.2f  %s\n",
		a.Sequence,
		mutedStyle.Render(a.Timestamp.UTC().Format(time.RFC3339)),
		renderPriority(a.Priority),
		a.Node,
		a.Score,
		a.Reason,
	)
}

func renderAlerts(w io.Writer, alerts []alert.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no alerts"))
		return
	}
	for _, a := range alerts {
		renderAlert(w, a)
	}
}

func renderStatus(w io.Writer, status agent.Status) {
	fmt.Fprintln(w, headerStyle.Render("membrane agent "+status.Build.Version))
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "events\t%d\n", status.Events)
	for _, decision := range policy.Decisions {
		fmt.Fprintf(tw, "  %s\t%d\n", renderDecision(decision), status.Verdicts[decision.String()])
	}
	fmt.Fprintf(tw, "thresholds\tdrop < %.2f, deprioritize < %.2f\n", status.DropThreshold, status.Untrusted)
	fmt.Fprintf(tw, "watched\t%s\n", formatNodes(status.Watched))
	lastSweep := "never"
	if !status.LastSweep.IsZero() {
		lastSweep = status.LastSweep.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(tw, "sweeps\t%d (last %s)\n", status.Sweeps, lastSweep)
	fmt.Fprintf(tw, "alerts\t%d stored of %d, %d emitted\n", total(status.Alerts), status.AlertCapacity, status.AlertsEmitted)
	for _, priority := range alert.Priorities {
		fmt.Fprintf(tw, "  %s\t%d\n", renderPriority(priority), status.Alerts[string(priority)])
	}
	tw.Flush()
}

func formatNodes(nodes []uint32) string {
	if len(nodes) == 0 {
		return "none"
	}
	sorted := slices.Clone(nodes)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, node := range sorted {
		parts[i] = fmt.Sprint(node)
	}
	return strings.Join(parts, " ")
}

func total(counts map[string]int) int {
	sum := 0
	for _, n := range counts {
		sum += n
	}
	return sum
}
