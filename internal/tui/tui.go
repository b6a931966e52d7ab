// Package tui is the interactive terminal client: a bubbletea program that
// renders the local board, routes keys and clicks to the reveal engine, and
// shows the shared result when the match ends.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/mineduel/internal/board"
	"github.com/lox/mineduel/internal/client"
	"github.com/lox/mineduel/internal/protocol"
	"github.com/muesli/termenv"
)

// Board layout on screen: a header line and a blank line sit above the grid,
// and every tile is cellWidth columns wide.
const (
	boardTop  = 2
	cellWidth = 3
)

// ServerMsg carries a message from the server into the update loop.
type ServerMsg struct {
	Message *protocol.Message
}

// ConnectionClosedMsg signals that the server connection has gone away.
type ConnectionClosedMsg struct {
	Err error
}

// tickMsg redraws the match clock once a second.
type tickMsg time.Time

// Model is the bubbletea model for one player's view of the match. Rows on
// screen are board x, columns are board y.
type Model struct {
	session *client.Session
	logger  *log.Logger

	keys keyMap
	help help.Model

	cursor board.Position
	mouse  bool

	disconnected  bool
	disconnectErr error
	quitting      bool

	width  int
	height int
}

// NewModel creates a model driving session. With mouse enabled, left clicks
// reveal and right clicks flag the tile under the pointer.
func NewModel(session *client.Session, logger *log.Logger, mouse bool) *Model {
	return &Model{
		session: session,
		logger:  logger.WithPrefix("tui"),
		keys:    defaultKeyMap(),
		help:    help.New(),
		mouse:   mouse,
	}
}

// Init starts the clock.
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case ServerMsg:
		if err := m.session.HandleMessage(msg.Message); err != nil {
			m.logger.Warn("Failed to handle server message", "type", msg.Message.Type, "error", err)
		}

	case ConnectionClosedMsg:
		m.disconnected = true
		m.disconnectErr = msg.Err
		m.logger.Info("Connection closed", "error", msg.Err)

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1, 0)
	case key.Matches(msg, m.keys.Left):
		m.moveCursor(0, -1)
	case key.Matches(msg, m.keys.Right):
		m.moveCursor(0, 1)
	case key.Matches(msg, m.keys.Reveal):
		m.reveal(m.cursor)
	case key.Matches(msg, m.keys.Flag):
		m.flag(m.cursor)
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	if !m.mouse || msg.Action != tea.MouseActionPress {
		return
	}
	pos, ok := m.cellAt(msg.X, msg.Y)
	if !ok {
		return
	}
	m.cursor = pos

	switch msg.Button {
	case tea.MouseButtonLeft:
		m.reveal(pos)
	case tea.MouseButtonRight:
		m.flag(pos)
	}
}

// cellAt maps a screen coordinate onto the board.
func (m *Model) cellAt(col, row int) (board.Position, bool) {
	e := m.session.Engine()
	if e == nil || col < 0 || row < boardTop {
		return board.Position{}, false
	}
	pos := board.Position{X: row - boardTop, Y: col / cellWidth}
	if !e.Board().InBounds(pos.X, pos.Y) {
		return board.Position{}, false
	}
	return pos, true
}

func (m *Model) moveCursor(dx, dy int) {
	width, height := board.DefaultWidth, board.DefaultHeight
	if e := m.session.Engine(); e != nil {
		width, height = e.Board().Width, e.Board().Height
	}
	m.cursor.X = min(max(m.cursor.X+dx, 0), width-1)
	m.cursor.Y = min(max(m.cursor.Y+dy, 0), height-1)
}

func (m *Model) reveal(pos board.Position) {
	n, err := m.session.Reveal(pos.X, pos.Y)
	if err != nil {
		m.logger.Error("Reveal failed", "x", pos.X, "y", pos.Y, "error", err)
		return
	}
	m.logger.Debug("Revealed", "x", pos.X, "y", pos.Y, "tiles", n)
}

func (m *Model) flag(pos board.Position) {
	if err := m.session.ToggleFlag(pos.X, pos.Y); err != nil {
		m.logger.Error("Flag failed", "x", pos.X, "y", pos.Y, "error", err)
	}
}

// Cursor returns the highlighted tile.
func (m *Model) Cursor() board.Position { return m.cursor }

// Session returns the session the model drives.
func (m *Model) Session() *client.Session { return m.session }

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderBoard())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderHeader() string {
	title := HeaderStyle.Render("Mine Duel")
	s := m.session
	if s.PlayerID() == "" {
		return title
	}

	info := fmt.Sprintf("%s  seed %d  %s", s.PlayerID(), s.Seed(), protocol.FormatGameTime(s.Elapsed()))
	if e := s.Engine(); e != nil {
		info += fmt.Sprintf("  flags %d/%d", e.Flags(), e.Board().MineCount)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, " ", InfoStyle.Render(info))
}

func (m *Model) renderBoard() string {
	e := m.session.Engine()
	if e == nil {
		return ""
	}

	// Mines are shown once the local board can no longer change.
	showMines := !e.Active()

	b := e.Board()
	var out strings.Builder
	for x := 0; x < b.Width; x++ {
		for y := 0; y < b.Height; y++ {
			cell := renderTile(b.Tile(x, y), showMines)
			if m.cursor == (board.Position{X: x, Y: y}) {
				cell = CursorStyle.Render(cell)
			}
			out.WriteString(cell)
		}
		out.WriteString("\n")
	}
	return out.String()
}

func renderTile(t *board.Tile, showMines bool) string {
	switch {
	case t.State == board.Flagged:
		return FlagStyle.Render(" F ")
	case t.State == board.Hidden && t.IsMine && showMines:
		return MineStyle.Render(" * ")
	case t.State == board.Hidden:
		return HiddenStyle.Render(" # ")
	case t.AdjacentMines == 0:
		return EmptyStyle.Render(" . ")
	default:
		return numberStyles[t.AdjacentMines-1].Render(" " + strconv.Itoa(t.AdjacentMines) + " ")
	}
}

func (m *Model) renderStatus() string {
	s := m.session

	var line string
	switch s.Status() {
	case client.StatusConnecting:
		line = InfoStyle.Render("Connecting...")
	case client.StatusWaiting:
		line = InfoStyle.Render("Waiting for an opponent...")
	case client.StatusPlaying:
		line = SuccessStyle.Render("Go! Clear every safe tile.")
	case client.StatusFinished:
		line = WarningStyle.Render(fmt.Sprintf("Cleared in %s. Waiting for your opponent...", s.GameTime()))
	case client.StatusOver:
		line = m.renderResult(s.Result())
	case client.StatusRejected:
		line = ErrorStyle.Render("Connection refused: " + s.LastError())
	}

	if m.disconnected && s.Status() != client.StatusRejected {
		msg := "Disconnected from server"
		if m.disconnectErr != nil {
			msg += ": " + m.disconnectErr.Error()
		}
		line += "\n" + ErrorStyle.Render(msg)
	}
	return line
}

func (m *Model) renderResult(result *protocol.GameOver) string {
	if result.Abandoned() {
		return WarningStyle.Render("Your opponent left. Waiting for a new opponent...")
	}

	var headline string
	if m.session.Won() {
		headline = SuccessStyle.Render("You win!")
	} else {
		headline = ErrorStyle.Render(*result.Winner + " wins.")
	}

	ids := make([]string, 0, len(result.Times))
	for id := range result.Times {
		ids = append(ids, id)
	}
	// Player labels sort in slot order.
	slices.Sort(ids)

	lines := []string{headline}
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("  %s  %s", id, result.Times[id]))
	}
	return strings.Join(lines, "\n")
}

// Inbox is the server side of a client connection.
type Inbox interface {
	Messages() <-chan *protocol.Message
	Err() error
}

// Sender accepts messages for a running program.
type Sender interface {
	Send(msg tea.Msg)
}

// Forward hands every server message to the program in arrival order, then
// reports the closed connection.
func Forward(p Sender, inbox Inbox) {
	for msg := range inbox.Messages() {
		p.Send(ServerMsg{Message: msg})
	}
	p.Send(ConnectionClosedMsg{Err: inbox.Err()})
}

// Options configures Run.
type Options struct {
	Mouse bool
}

// Run plays a match over c until the user quits or ctx is cancelled.
func Run(ctx context.Context, c *client.Client, logger *log.Logger, opts Options) error {
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	model := NewModel(client.NewSession(c, logger), logger, opts.Mouse)

	programOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Mouse {
		programOpts = append(programOpts, tea.WithMouseCellMotion())
	}
	program := tea.NewProgram(model, programOpts...)

	go Forward(program, c)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
