package client

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/mineduel/internal/protocol"
)

// DefaultRevealInterval is how often the autoplayer makes a move.
const DefaultRevealInterval = 200 * time.Millisecond

var ErrConnectionLost = errors.New("connection to server lost")

// Autoplayer plays a match without a UI. It knows the board, so it only ever
// reveals safe tiles; its speed is set by the reveal interval. Server messages
// and moves are handled on the same goroutine.
type Autoplayer struct {
	session  *Session
	messages <-chan *protocol.Message
	clock    quartz.Clock
	interval time.Duration
	logger   *log.Logger
}

// NewAutoplayer drives session from messages, revealing one tile per
// interval. A zero interval uses DefaultRevealInterval.
func NewAutoplayer(session *Session, messages <-chan *protocol.Message, clock quartz.Clock, interval time.Duration, logger *log.Logger) *Autoplayer {
	if interval <= 0 {
		interval = DefaultRevealInterval
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Autoplayer{
		session:  session,
		messages: messages,
		clock:    clock,
		interval: interval,
		logger:   logger.WithPrefix("bot"),
	}
}

// Run plays until a game_over arrives and returns it. A rejected connection,
// a closed message channel or a cancelled ctx end the run with an error.
func (a *Autoplayer) Run(ctx context.Context) (*protocol.GameOver, error) {
	ticker := a.clock.NewTicker(a.interval, "autoplayer")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case msg, ok := <-a.messages:
			if !ok {
				return nil, ErrConnectionLost
			}
			if err := a.session.HandleMessage(msg); err != nil {
				a.logger.Warn("Failed to handle message", "type", msg.Type, "error", err)
				continue
			}
			switch a.session.Status() {
			case StatusOver:
				return a.session.Result(), nil
			case StatusRejected:
				return nil, errors.New(a.session.LastError())
			}

		case <-ticker.C:
			if err := a.Step(); err != nil {
				return nil, err
			}
		}
	}
}

// Step reveals the next safe tile if a match is being played.
func (a *Autoplayer) Step() error {
	if a.session.Status() != StatusPlaying {
		return nil
	}
	pos, ok := a.session.Engine().NextSafe()
	if !ok {
		return nil
	}

	n, err := a.session.Reveal(pos.X, pos.Y)
	if err != nil {
		return err
	}
	a.logger.Debug("Revealed", "x", pos.X, "y", pos.Y, "tiles", n, "status", a.session.Status())
	return nil
}
