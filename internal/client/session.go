package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/mineduel/internal/board"
	"github.com/lox/mineduel/internal/engine"
	"github.com/lox/mineduel/internal/protocol"
)

var ErrUnexpectedMessage = errors.New("unexpected message from server")

// Upstream carries messages from the client to the server.
type Upstream interface {
	Send(msg *protocol.Message) error
}

// Status is where the local player stands in the match.
type Status int

const (
	StatusConnecting Status = iota
	StatusWaiting           // admitted, waiting for an opponent
	StatusPlaying
	StatusFinished // board cleared and reported, waiting for the result
	StatusOver
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusWaiting:
		return "waiting"
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	case StatusOver:
		return "over"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Session follows the match from one player's side: it builds the board when
// the match starts, applies local moves, and reports the finish time once.
// It is not safe for concurrent use; the UI loop or autoplayer owns it.
type Session struct {
	upstream Upstream
	logger   *log.Logger
	clock    quartz.Clock

	playerID     string
	seed         int64
	totalPlayers int
	status       Status

	engine    *engine.Engine
	startedAt time.Time
	stoppedAt time.Time
	gameTime  string // reported finish time

	result    *protocol.GameOver
	lastError string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock sets the clock used to time the match.
func WithClock(clock quartz.Clock) SessionOption {
	return func(s *Session) { s.clock = clock }
}

// NewSession creates a session that reports to upstream.
func NewSession(upstream Upstream, logger *log.Logger, opts ...SessionOption) *Session {
	s := &Session{
		upstream: upstream,
		logger:   logger.WithPrefix("session"),
		clock:    quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleMessage applies a server message.
func (s *Session) HandleMessage(msg *protocol.Message) error {
	switch msg.Type {
	case protocol.TypePlayerConnected:
		var data protocol.PlayerConnected
		if err := msg.Decode(&data); err != nil {
			return err
		}
		s.playerID = data.PlayerID
		s.seed = data.BoardSeed
		s.totalPlayers = data.TotalPlayers
		s.status = StatusWaiting
		s.logger.Info("Joined session", "player", s.playerID, "seed", s.seed, "players", s.totalPlayers)

	case protocol.TypeGameStart:
		var data protocol.GameStart
		if err := msg.Decode(&data); err != nil {
			return err
		}
		s.start(data.BoardSeed)

	case protocol.TypeGameOver, protocol.TypeGameCompleted:
		var data protocol.GameOver
		if err := msg.Decode(&data); err != nil {
			return err
		}
		s.over(data)

	case protocol.TypeConnectionError:
		var data protocol.ConnectionError
		if err := msg.Decode(&data); err != nil {
			return err
		}
		s.lastError = data.Message
		s.logger.Warn("Server reported an error", "message", data.Message, "status", s.status)
		// Before admission this is a rejection; afterwards the connection stays usable.
		if s.status == StatusConnecting {
			s.status = StatusRejected
			s.stopClock()
		}

	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Type)
	}
	return nil
}

func (s *Session) start(seed int64) {
	s.seed = seed
	s.totalPlayers = 2
	s.engine = engine.New(board.GenerateDefault(seed))
	s.startedAt = s.clock.Now()
	s.stoppedAt = time.Time{}
	s.gameTime = ""
	s.result = nil
	s.status = StatusPlaying

	b := s.engine.Board()
	s.logger.Info("Match started", "seed", seed, "mines", b.MineCount, "width", b.Width, "height", b.Height)
}

func (s *Session) over(result protocol.GameOver) {
	s.result = &result
	s.status = StatusOver
	s.stopClock()

	if result.Abandoned() {
		s.logger.Info("Match abandoned by opponent")
		return
	}
	s.logger.Info("Match over", "winner", *result.Winner, "won", s.Won(), "times", result.Times)
}

func (s *Session) stopClock() {
	if s.engine != nil {
		s.engine.Freeze()
	}
	if !s.startedAt.IsZero() && s.stoppedAt.IsZero() {
		s.stoppedAt = s.clock.Now()
	}
}

// Reveal uncovers the tile at (x, y). When that clears the board the finish
// time is sent upstream; the board then accepts no further moves.
func (s *Session) Reveal(x, y int) (int, error) {
	if s.engine == nil {
		return 0, nil
	}

	n, err := s.engine.Reveal(x, y)
	if err != nil {
		return 0, err
	}

	if s.status == StatusPlaying && s.engine.IsCleared() {
		return n, s.report()
	}
	return n, nil
}

func (s *Session) report() error {
	s.engine.Freeze()
	s.stoppedAt = s.clock.Now()
	s.gameTime = protocol.FormatGameTime(s.stoppedAt.Sub(s.startedAt))
	s.status = StatusFinished

	s.logger.Info("Board cleared", "game_time", s.gameTime)

	msg, err := protocol.NewMessage(protocol.TypePlayerFinished, protocol.PlayerFinished{
		PlayerID: s.playerID,
		GameTime: s.gameTime,
	})
	if err != nil {
		return err
	}
	if err := s.upstream.Send(msg); err != nil {
		return fmt.Errorf("failed to report finish: %w", err)
	}
	return nil
}

// ToggleFlag flags or unflags the tile at (x, y).
func (s *Session) ToggleFlag(x, y int) error {
	if s.engine == nil {
		return nil
	}
	return s.engine.ToggleFlag(x, y)
}

// Elapsed is the time since the match started, frozen once the local board is
// cleared or the match ends.
func (s *Session) Elapsed() time.Duration {
	switch {
	case s.startedAt.IsZero():
		return 0
	case !s.stoppedAt.IsZero():
		return s.stoppedAt.Sub(s.startedAt)
	default:
		return s.clock.Since(s.startedAt)
	}
}

func (s *Session) Status() Status { return s.status }

func (s *Session) PlayerID() string { return s.playerID }

func (s *Session) Seed() int64 { return s.seed }

func (s *Session) TotalPlayers() int { return s.totalPlayers }

// Engine returns the current board's engine, or nil before the first match.
func (s *Session) Engine() *engine.Engine { return s.engine }

// GameTime is the finish time reported for the current match, if any.
func (s *Session) GameTime() string { return s.gameTime }

// Result is the last game_over received, or nil.
func (s *Session) Result() *protocol.GameOver { return s.result }

// LastError is the last message carried by a connection_error.
func (s *Session) LastError() string { return s.lastError }

// Won reports whether the last result named this player.
func (s *Session) Won() bool {
	return s.result != nil && s.result.Winner != nil && *s.result.Winner == s.playerID
}
