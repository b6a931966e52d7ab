package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/mineduel/internal/board"
	"github.com/lox/mineduel/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type fakeUpstream struct {
	mu   sync.Mutex
	sent []*protocol.Message
	err  error
}

func (u *fakeUpstream) Send(msg *protocol.Message) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.sent = append(u.sent, msg)
	return nil
}

func (u *fakeUpstream) Sent() []*protocol.Message {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*protocol.Message(nil), u.sent...)
}

func message(t *testing.T, messageType protocol.MessageType, payload any) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(messageType, payload)
	require.NoError(t, err)
	return msg
}

func gameOver(winner string, times map[string]string) protocol.GameOver {
	over := protocol.GameOver{Times: times}
	if winner != "" {
		over.Winner = &winner
	}
	return over
}

// clearBoard reveals every safe tile and returns the number of reveals made.
func clearBoard(t *testing.T, s *Session) int {
	t.Helper()
	moves := 0
	for {
		pos, ok := s.Engine().NextSafe()
		if !ok {
			return moves
		}
		_, err := s.Reveal(pos.X, pos.Y)
		require.NoError(t, err)
		moves++
		require.Less(t, moves, 200)
	}
}

func joinAndStart(t *testing.T, s *Session, playerID string, seed int64) {
	t.Helper()
	require.NoError(t, s.HandleMessage(message(t, protocol.TypePlayerConnected, protocol.PlayerConnected{
		PlayerID: playerID, BoardSeed: seed, TotalPlayers: 1,
	})))
	require.NoError(t, s.HandleMessage(message(t, protocol.TypeGameStart, protocol.GameStart{BoardSeed: seed})))
}

func TestSessionJoin(t *testing.T) {
	s := NewSession(&fakeUpstream{}, testLogger())
	assert.Equal(t, StatusConnecting, s.Status())

	require.NoError(t, s.HandleMessage(message(t, protocol.TypePlayerConnected, protocol.PlayerConnected{
		PlayerID: "Player A", BoardSeed: 77, TotalPlayers: 1,
	})))

	assert.Equal(t, StatusWaiting, s.Status())
	assert.Equal(t, "Player A", s.PlayerID())
	assert.Equal(t, int64(77), s.Seed())
	assert.Equal(t, 1, s.TotalPlayers())
	assert.Nil(t, s.Engine())
	assert.Zero(t, s.Elapsed())

	n, err := s.Reveal(0, 0)
	assert.NoError(t, err, "moves before the match are ignored")
	assert.Zero(t, n)
	assert.NoError(t, s.ToggleFlag(0, 0))
}

func TestSessionBuildsSharedBoard(t *testing.T) {
	s := NewSession(&fakeUpstream{}, testLogger())
	joinAndStart(t, s, "Player B", 9001)

	require.NotNil(t, s.Engine())
	assert.Equal(t, StatusPlaying, s.Status())
	assert.True(t, s.Engine().Active())

	want := board.GenerateDefault(9001)
	assert.Equal(t, want.String(), s.Engine().Board().String())
	assert.Equal(t, want.Mines(), s.Engine().Board().Mines())
}

func TestSessionReportsFinishOnce(t *testing.T) {
	ctx := context.Background()
	mClock := quartz.NewMock(t)
	up := &fakeUpstream{}
	s := NewSession(up, testLogger(), WithClock(mClock))
	joinAndStart(t, s, "Player A", 42)

	mClock.Advance(45 * time.Second).MustWait(ctx)
	assert.Equal(t, 45*time.Second, s.Elapsed())

	clearBoard(t, s)

	sent := up.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, protocol.TypePlayerFinished, sent[0].Type)
	var report protocol.PlayerFinished
	require.NoError(t, sent[0].Decode(&report))
	assert.Equal(t, protocol.PlayerFinished{PlayerID: "Player A", GameTime: "00:00:45"}, report)

	assert.Equal(t, StatusFinished, s.Status())
	assert.Equal(t, "00:00:45", s.GameTime())
	assert.False(t, s.Engine().Active())

	// The clock stops at the report and further moves are inert.
	mClock.Advance(10 * time.Second).MustWait(ctx)
	assert.Equal(t, 45*time.Second, s.Elapsed())
	for x := range board.DefaultWidth {
		for y := range board.DefaultHeight {
			_, err := s.Reveal(x, y)
			require.NoError(t, err)
		}
	}
	assert.Len(t, up.Sent(), 1)
}

func TestSessionGameOver(t *testing.T) {
	ctx := context.Background()
	mClock := quartz.NewMock(t)
	s := NewSession(&fakeUpstream{}, testLogger(), WithClock(mClock))
	joinAndStart(t, s, "Player B", 5)

	mClock.Advance(30 * time.Second).MustWait(ctx)
	require.NoError(t, s.HandleMessage(message(t, protocol.TypeGameOver,
		gameOver("Player A", map[string]string{"Player A": "00:00:20", "Player B": "00:00:29"}))))

	assert.Equal(t, StatusOver, s.Status())
	assert.False(t, s.Engine().Active(), "input is frozen")
	require.NotNil(t, s.Result())
	assert.Equal(t, "Player A", *s.Result().Winner)
	assert.False(t, s.Won())

	mClock.Advance(30 * time.Second).MustWait(ctx)
	assert.Equal(t, 30*time.Second, s.Elapsed())

	pos, ok := s.Engine().NextSafe()
	require.True(t, ok)
	n, err := s.Reveal(pos.X, pos.Y)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionAcceptsLegacyGameCompleted(t *testing.T) {
	s := NewSession(&fakeUpstream{}, testLogger())
	joinAndStart(t, s, "Player A", 5)

	require.NoError(t, s.HandleMessage(message(t, protocol.TypeGameCompleted,
		gameOver("Player A", map[string]string{"Player A": "00:00:10"}))))

	assert.Equal(t, StatusOver, s.Status())
	assert.True(t, s.Won())
}

func TestSessionRearmsAfterAbandonedMatch(t *testing.T) {
	up := &fakeUpstream{}
	s := NewSession(up, testLogger())
	joinAndStart(t, s, "Player A", 11)

	require.NoError(t, s.HandleMessage(message(t, protocol.TypeGameOver, gameOver("", map[string]string{}))))
	assert.Equal(t, StatusOver, s.Status())
	assert.True(t, s.Result().Abandoned())

	// A new opponent arrives with a new seed.
	require.NoError(t, s.HandleMessage(message(t, protocol.TypeGameStart, protocol.GameStart{BoardSeed: 12})))
	assert.Equal(t, StatusPlaying, s.Status())
	assert.Nil(t, s.Result())
	assert.Equal(t, board.GenerateDefault(12).String(), s.Engine().Board().String())

	clearBoard(t, s)
	assert.Len(t, up.Sent(), 1)
}

func TestSessionRejected(t *testing.T) {
	s := NewSession(&fakeUpstream{}, testLogger())

	require.NoError(t, s.HandleMessage(message(t, protocol.TypeConnectionError, protocol.ConnectionError{Message: "Game is full"})))
	assert.Equal(t, StatusRejected, s.Status())
	assert.Equal(t, "Game is full", s.LastError())
}

func TestSessionErrorAfterAdmission(t *testing.T) {
	s := NewSession(&fakeUpstream{}, testLogger())
	joinAndStart(t, s, "Player A", 3)

	require.NoError(t, s.HandleMessage(message(t, protocol.TypeConnectionError, protocol.ConnectionError{Message: "An error occurred"})))
	assert.Equal(t, StatusPlaying, s.Status())
	assert.True(t, s.Engine().Active())
	assert.Equal(t, "An error occurred", s.LastError())
}

func TestSessionRejectsClientMessages(t *testing.T) {
	s := NewSession(&fakeUpstream{}, testLogger())
	err := s.HandleMessage(message(t, protocol.TypePlayerFinished, protocol.PlayerFinished{}))
	assert.ErrorIs(t, err, ErrUnexpectedMessage)
}

func TestSessionReportFailure(t *testing.T) {
	up := &fakeUpstream{err: errors.New("send buffer full")}
	s := NewSession(up, testLogger())
	joinAndStart(t, s, "Player A", 8)

	var lastErr error
	for {
		pos, ok := s.Engine().NextSafe()
		if !ok {
			break
		}
		if _, err := s.Reveal(pos.X, pos.Y); err != nil {
			lastErr = err
		}
	}
	assert.ErrorContains(t, lastErr, "send buffer full")
	assert.Equal(t, StatusFinished, s.Status())
}

func TestSessionInvalidCoordinates(t *testing.T) {
	s := NewSession(&fakeUpstream{}, testLogger())
	joinAndStart(t, s, "Player A", 8)

	_, err := s.Reveal(-1, 0)
	assert.Error(t, err)
	assert.Error(t, s.ToggleFlag(0, board.DefaultHeight))
}
