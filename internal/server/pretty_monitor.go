package server

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/mineduel/internal/session"
)

// PrettyMonitor implements session.MatchMonitor for formatted match display.
type PrettyMonitor struct {
	writer io.Writer

	mu        sync.Mutex
	started   uint64
	completed uint64

	title  lipgloss.Style
	winner lipgloss.Style
	warn   lipgloss.Style
	dim    lipgloss.Style
}

// NewPrettyMonitor creates a monitor writing to writer, or stdout when nil.
// Colours follow the writer's terminal capabilities.
func NewPrettyMonitor(writer io.Writer) *PrettyMonitor {
	if writer == nil {
		writer = os.Stdout
	}
	r := lipgloss.NewRenderer(writer)
	return &PrettyMonitor{
		writer: writer,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
		winner: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		warn:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		dim:    r.NewStyle().Faint(true),
	}
}

// OnMatchStart is called when both players are in.
func (p *PrettyMonitor) OnMatchStart(start session.MatchStart) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started++
	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, p.title.Render(fmt.Sprintf("=== Match #%d (ID: %s) ===", p.started, start.MatchID)))
	fmt.Fprintf(p.writer, "Seed: %d  Players: %v\n", start.Seed, start.Players)
}

// OnMatchComplete is called once both finish times are in.
func (p *PrettyMonitor) OnMatchComplete(result session.MatchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	ids := make([]string, 0, len(result.Times))
	for id := range result.Times {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		line := fmt.Sprintf("  %-10s %s", id, result.Times[id])
		if id == result.Winner {
			line = p.winner.Render(line + "  WINNER")
		}
		fmt.Fprintln(p.writer, line)
	}
	if result.Fallback {
		fmt.Fprintln(p.writer, p.warn.Render("  (times could not be compared, first player wins)"))
	}
	fmt.Fprintln(p.writer, p.dim.Render(fmt.Sprintf("  Duration: %s  Completed: %d/%d",
		result.FinishedAt.Sub(result.StartedAt).Round(time.Second), p.completed, p.started)))
}

// OnMatchAbandoned is called when a player leaves mid-match.
func (p *PrettyMonitor) OnMatchAbandoned(abandoned session.MatchAbandoned) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.writer, p.warn.Render(fmt.Sprintf("  %s left the match: %v", abandoned.Player, abandoned.Reason)))
}
