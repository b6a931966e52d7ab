// Package session pairs two players into a match and arbitrates the winner.
//
// A single Coordinator goroutine owns the session. Transports submit Connect,
// Finish and Disconnect commands; each command, including the messages it
// sends, is applied before the next one is read.
package session

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/mineduel/internal/matchid"
	"github.com/lox/mineduel/internal/protocol"
)

var (
	ErrSessionFull        = errors.New("game is full")
	ErrPeerDisconnected   = errors.New("peer disconnected")
	ErrCoordinatorStopped = errors.New("coordinator stopped")
)

// Slot labels, assigned in this order.
const (
	PlayerA = "Player A"
	PlayerB = "Player B"
)

var labels = [...]string{PlayerA, PlayerB}

// MaxPlayers is the number of slots in a session.
const MaxPlayers = len(labels)

// Message sent to a connection rejected because both slots are taken.
const sessionFullMessage = "Game is full"

// Peer is one end of the event channel to a client.
type Peer interface {
	// ID identifies the connection; it is unique for the connection's lifetime.
	ID() string
	// Send queues a message and must not block.
	Send(msg *protocol.Message) error
	Close() error
}

// Coordinator serializes every change to the session.
type Coordinator struct {
	logger   *log.Logger
	clock    quartz.Clock
	seeds    SeedSource
	monitor  MatchMonitor
	matchIDs func() string

	requests chan request
	stopped  chan struct{}
	running  atomic.Bool

	// owned by the Run goroutine
	state state
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used for connection and match timestamps.
func WithClock(clock quartz.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithSeedSource sets where board seeds come from.
func WithSeedSource(seeds SeedSource) Option {
	return func(c *Coordinator) { c.seeds = seeds }
}

// WithMonitor registers monitors for match events.
func WithMonitor(monitors ...MatchMonitor) Option {
	return func(c *Coordinator) { c.monitor = NewMultiMonitor(monitors...) }
}

// WithMatchIDs sets the generator for match identifiers.
func WithMatchIDs(next func() string) Option {
	return func(c *Coordinator) { c.matchIDs = next }
}

// NewCoordinator creates a coordinator with an empty session. Call Run to start
// processing commands.
func NewCoordinator(logger *log.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:   logger.WithPrefix("session"),
		clock:    quartz.NewReal(),
		monitor:  NullMonitor{},
		matchIDs: matchid.Generate,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.seeds == nil {
		c.seeds = NewRandomSeeds(c.clock.Now().UnixNano())
	}
	return c
}

// Run processes commands until ctx is cancelled. It may only be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("coordinator already running")
	}
	defer close(c.stopped)

	c.logger.Debug("Coordinator started")
	for {
		select {
		case req := <-c.requests:
			req.done <- req.cmd.apply(c)
		case <-ctx.Done():
			c.logger.Debug("Coordinator stopped", "phase", c.state.phase, "players", len(c.state.slots))
			return ctx.Err()
		}
	}
}

// Connect admits peer to the session. It returns ErrSessionFull when both
// slots are taken; the peer has then already been told and closed.
func (c *Coordinator) Connect(ctx context.Context, peer Peer) error {
	return c.submit(ctx, connectCmd{peer: peer})
}

// Finish records the game time peer reported for its cleared board.
func (c *Coordinator) Finish(ctx context.Context, peer Peer, report protocol.PlayerFinished) error {
	return c.submit(ctx, finishCmd{peer: peer, report: report})
}

// Disconnect removes peer from the session.
func (c *Coordinator) Disconnect(ctx context.Context, peer Peer) error {
	return c.submit(ctx, disconnectCmd{peer: peer})
}

// Snapshot returns a copy of the current session state.
func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	cmd := &snapshotCmd{}
	if err := c.submit(ctx, cmd); err != nil {
		return Snapshot{}, err
	}
	return cmd.out, nil
}

func (c *Coordinator) submit(ctx context.Context, cmd command) error {
	req := request{cmd: cmd, done: make(chan error, 1)}

	select {
	case c.requests <- req:
	case <-c.stopped:
		return ErrCoordinatorStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted a command always completes.
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type request struct {
	cmd  command
	done chan error
}

type command interface {
	apply(c *Coordinator) error
}

type connectCmd struct{ peer Peer }

func (cmd connectCmd) apply(c *Coordinator) error { return c.connect(cmd.peer) }

type finishCmd struct {
	peer   Peer
	report protocol.PlayerFinished
}

func (cmd finishCmd) apply(c *Coordinator) error { return c.finish(cmd.peer, cmd.report) }

type disconnectCmd struct{ peer Peer }

func (cmd disconnectCmd) apply(c *Coordinator) error { return c.disconnect(cmd.peer) }

type snapshotCmd struct{ out Snapshot }

func (cmd *snapshotCmd) apply(c *Coordinator) error {
	cmd.out = c.state.snapshot()
	return nil
}

func (c *Coordinator) connect(peer Peer) error {
	s := &c.state

	if s.find(peer) >= 0 {
		c.logger.Warn("Peer already holds a slot", "peer", peer.ID())
		return nil
	}

	if len(s.slots) >= MaxPlayers {
		c.logger.Warn("Rejecting connection", "peer", peer.ID(), "phase", s.phase, "error", ErrSessionFull)
		c.send(peer, protocol.TypeConnectionError, protocol.ConnectionError{Message: sessionFullMessage})
		if err := peer.Close(); err != nil {
			c.logger.Debug("Failed to close rejected peer", "peer", peer.ID(), "error", err)
		}
		return ErrSessionFull
	}

	if s.seed == 0 {
		s.seed = c.seeds.NextSeed()
	}

	joined := &slot{id: s.freeLabel(), peer: peer, connectedAt: c.clock.Now()}
	s.slots = append(s.slots, joined)

	c.logger.Info("Player connected",
		"player", joined.id,
		"peer", peer.ID(),
		"seed", s.seed,
		"players", len(s.slots))

	c.send(peer, protocol.TypePlayerConnected, protocol.PlayerConnected{
		PlayerID:     joined.id,
		BoardSeed:    s.seed,
		TotalPlayers: len(s.slots),
	})

	if len(s.slots) < MaxPlayers {
		s.phase = PhaseWaiting
		return nil
	}

	s.phase = PhaseInProgress
	s.startedAt = c.clock.Now()
	s.matchID = c.matchIDs()

	c.logger.Info("Match started", "match", s.matchID, "seed", s.seed)
	c.broadcast(protocol.TypeGameStart, protocol.GameStart{BoardSeed: s.seed})
	c.monitor.OnMatchStart(MatchStart{
		MatchID:   s.matchID,
		Seed:      s.seed,
		Players:   s.playerIDs(),
		StartedAt: s.startedAt,
	})
	return nil
}

func (c *Coordinator) finish(peer Peer, report protocol.PlayerFinished) error {
	s := &c.state

	if s.phase != PhaseInProgress {
		c.logger.Debug("Ignoring finish report", "peer", peer.ID(), "phase", s.phase)
		return nil
	}

	idx := s.find(peer)
	if idx < 0 {
		c.logger.Debug("Ignoring finish report from unknown peer", "peer", peer.ID())
		return nil
	}
	reporter := s.slots[idx]

	if report.GameTime == "" {
		c.logger.Warn("Ignoring finish report without a game time", "player", reporter.id)
		return nil
	}
	if report.PlayerID != "" && report.PlayerID != reporter.id {
		c.logger.Warn("Finish report names another player", "player", reporter.id, "reported", report.PlayerID)
	}
	if reporter.gameTime != "" {
		c.logger.Info("Replacing finish report", "player", reporter.id, "previous", reporter.gameTime, "game_time", report.GameTime)
	}
	reporter.gameTime = report.GameTime

	c.logger.Info("Player finished", "match", s.matchID, "player", reporter.id, "game_time", report.GameTime)

	for _, sl := range s.slots {
		if sl.gameTime == "" {
			return nil
		}
	}
	c.arbitrate()
	return nil
}

func (c *Coordinator) arbitrate() {
	s := &c.state

	winner, err := decideWinner(s.slots)
	if err != nil {
		c.logger.Warn("Falling back to first player", "match", s.matchID, "winner", winner.id, "error", err)
	}

	times := make(map[string]string, len(s.slots))
	for _, sl := range s.slots {
		times[sl.id] = sl.gameTime
	}

	s.phase = PhaseFinished
	finishedAt := c.clock.Now()

	c.logger.Info("Match finished", "match", s.matchID, "winner", winner.id, "times", times)

	winnerID := winner.id
	c.broadcast(protocol.TypeGameOver, protocol.GameOver{Winner: &winnerID, Times: times})
	c.monitor.OnMatchComplete(MatchResult{
		MatchID:    s.matchID,
		Seed:       s.seed,
		Winner:     winnerID,
		Times:      times,
		Fallback:   err != nil,
		StartedAt:  s.startedAt,
		FinishedAt: finishedAt,
	})
}

// decideWinner picks the slot with the shortest game time, preferring the
// earlier slot on a tie. If any time fails to parse, the first slot wins and
// the parse error is returned.
func decideWinner(slots []*slot) (*slot, error) {
	winner := slots[0]
	best, err := protocol.ParseGameTime(winner.gameTime)
	if err != nil {
		return slots[0], err
	}
	for _, sl := range slots[1:] {
		d, err := protocol.ParseGameTime(sl.gameTime)
		if err != nil {
			return slots[0], err
		}
		if d < best {
			winner, best = sl, d
		}
	}
	return winner, nil
}

func (c *Coordinator) disconnect(peer Peer) error {
	s := &c.state

	idx := s.find(peer)
	if idx < 0 {
		c.logger.Debug("Ignoring disconnect from unknown peer", "peer", peer.ID())
		return nil
	}
	left := s.slots[idx]
	s.slots = slices.Delete(s.slots, idx, idx+1)

	c.logger.Info("Player disconnected",
		"player", left.id,
		"peer", peer.ID(),
		"phase", s.phase,
		"remaining", len(s.slots))

	if len(s.slots) >= MaxPlayers {
		return nil
	}

	prev := s.phase
	abandoned := MatchAbandoned{
		MatchID:   s.matchID,
		Seed:      s.seed,
		Player:    left.id,
		StartedAt: s.startedAt,
		EndedAt:   c.clock.Now(),
		Reason:    ErrPeerDisconnected,
	}
	s.reset()

	// After a decided match the remaining player keeps its result.
	if prev != PhaseInProgress {
		return nil
	}

	c.logger.Warn("Match abandoned", "match", abandoned.MatchID, "player", left.id, "error", ErrPeerDisconnected)
	c.broadcast(protocol.TypeGameOver, protocol.GameOver{Times: map[string]string{}})
	c.monitor.OnMatchAbandoned(abandoned)
	return nil
}

func (c *Coordinator) broadcast(messageType protocol.MessageType, payload any) {
	msg, err := protocol.NewMessage(messageType, payload)
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	for _, sl := range c.state.slots {
		c.deliver(sl.peer, msg)
	}
}

func (c *Coordinator) send(peer Peer, messageType protocol.MessageType, payload any) {
	msg, err := protocol.NewMessage(messageType, payload)
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	c.deliver(peer, msg)
}

func (c *Coordinator) deliver(peer Peer, msg *protocol.Message) {
	if err := peer.Send(msg); err != nil {
		c.logger.Warn("Failed to send message", "peer", peer.ID(), "type", msg.Type, "error", err)
	}
}
