package session

import (
	"slices"
	"time"
)

// Phase is the lifecycle stage of the session.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseWaiting
	PhaseInProgress
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseWaiting:
		return "waiting"
	case PhaseInProgress:
		return "in_progress"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type slot struct {
	id          string
	peer        Peer
	gameTime    string // empty until the player reports
	connectedAt time.Time
}

// state is the single session. A seed of zero means none has been issued.
type state struct {
	seed      int64
	phase     Phase
	slots     []*slot // connection order
	startedAt time.Time
	matchID   string
}

func (s *state) find(peer Peer) int {
	id := peer.ID()
	return slices.IndexFunc(s.slots, func(sl *slot) bool { return sl.peer.ID() == id })
}

func (s *state) freeLabel() string {
	for _, label := range labels {
		if !slices.ContainsFunc(s.slots, func(sl *slot) bool { return sl.id == label }) {
			return label
		}
	}
	return ""
}

func (s *state) playerIDs() []string {
	ids := make([]string, len(s.slots))
	for i, sl := range s.slots {
		ids[i] = sl.id
	}
	return ids
}

// reset abandons the current match. Remaining slots stay connected but lose
// any finish report.
func (s *state) reset() {
	s.seed = 0
	s.phase = PhaseEmpty
	s.startedAt = time.Time{}
	s.matchID = ""
	for _, sl := range s.slots {
		sl.gameTime = ""
	}
}

func (s *state) snapshot() Snapshot {
	snap := Snapshot{
		Phase:     s.phase,
		Seed:      s.seed,
		MatchID:   s.matchID,
		StartedAt: s.startedAt,
		Players:   make([]PlayerSnapshot, len(s.slots)),
	}
	for i, sl := range s.slots {
		snap.Players[i] = PlayerSnapshot{
			ID:          sl.id,
			PeerID:      sl.peer.ID(),
			GameTime:    sl.gameTime,
			ConnectedAt: sl.connectedAt,
		}
	}
	return snap
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Phase     Phase            `json:"phase"`
	Seed      int64            `json:"seed,omitempty"`
	MatchID   string           `json:"match_id,omitempty"`
	StartedAt time.Time        `json:"started_at,omitzero"`
	Players   []PlayerSnapshot `json:"players"`
}

// PlayerSnapshot describes one occupied slot.
type PlayerSnapshot struct {
	ID          string    `json:"id"`
	PeerID      string    `json:"peer"`
	GameTime    string    `json:"game_time,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}
